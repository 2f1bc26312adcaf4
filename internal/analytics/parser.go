package analytics

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultLocation is the zone talk exports are written in. LINE exports carry
// wall-clock times with no offset; Japanese exports are in JST.
var DefaultLocation = time.FixedZone("JST", 9*60*60)

var (
	// Date headers look like "2025/06/08(日)". A line only counts as a header
	// when it also contains "(", so a message starting with a date is not
	// mistaken for one.
	dateHeaderPattern = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	wideSpacePattern  = regexp.MustCompile(`[\s\p{Zs}]{2,}`)
	callPattern       = regexp.MustCompile(`☎ 通話時間\s*(\d+):(\d+)`)
)

const (
	markerSticker    = "[スタンプ]"
	markerImage      = "[写真]"
	markerVideo      = "[動画]"
	markerVoice      = "[ボイスメッセージ]"
	markerFile       = "[ファイル]"
	markerMissedCall = "☎ 不在着信"
)

// Parser turns talk export text into messages.
type Parser struct {
	loc *time.Location
}

// NewParser creates a parser that interprets wall-clock times in loc.
// A nil loc means DefaultLocation.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = DefaultLocation
	}
	return &Parser{loc: loc}
}

// Parse parses a talk export using DefaultLocation.
func Parse(text string) []Message {
	return NewParser(nil).Parse(text)
}

// Parse splits text into lines and returns every message line it recognises.
// Malformed lines are skipped; Parse never fails.
func (p *Parser) Parse(text string) []Message {
	st := &parseState{}
	for _, raw := range strings.Split(text, "\n") {
		p.parseLine(st, raw)
	}
	return st.messages
}

// ParseReader is Parse for streamed input. It only fails when the reader
// does, or when a single line exceeds the scanner limit.
func (p *Parser) ParseReader(r io.Reader) ([]Message, error) {
	st := &parseState{}

	scanner := bufio.NewScanner(r)
	const maxLineSize = 10 * 1024 * 1024 // 10MB
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		p.parseLine(st, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning talk log: %w", err)
	}
	return st.messages, nil
}

type parseState struct {
	date     string // current "YYYY/MM/DD" cursor, empty before the first header
	y, m, d  int
	validDay bool // false when the header names a day that does not exist
	messages []Message
}

func (p *Parser) parseLine(st *parseState, raw string) {
	line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if line == "" {
		return
	}

	if dm := dateHeaderPattern.FindStringSubmatch(line); dm != nil && strings.Contains(line, "(") {
		st.y, _ = strconv.Atoi(dm[1])
		st.m, _ = strconv.Atoi(dm[2])
		st.d, _ = strconv.Atoi(dm[3])
		st.date = fmt.Sprintf("%04d/%02d/%02d", st.y, st.m, st.d)
		st.validDay = isCalendarDate(st.y, st.m, st.d)
		return
	}

	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		parts = wideSpacePattern.Split(line, -1)
	}
	if len(parts) < 3 || st.date == "" {
		return
	}

	clock := strings.TrimSpace(parts[0])
	msg := Message{
		Datetime: st.date + " " + clock,
		Sender:   strings.TrimSpace(parts[1]),
		Body:     strings.TrimSpace(strings.Join(parts[2:], "\t")),
	}
	if h, mi, s, ok := parseClock(clock); ok && st.validDay {
		msg.At = time.Date(st.y, time.Month(st.m), st.d, h, mi, s, 0, p.loc)
	}
	msg.Type, msg.DurationSec = classify(msg.Body)

	st.messages = append(st.messages, msg)
}

// isCalendarDate reports whether y/m/d names a real day. time.Date would
// silently roll 2024/13/40 into 2025.
func isCalendarDate(y, m, d int) bool {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && int(t.Month()) == m && t.Day() == d
}

// classify maps a message body to its type. Placeholders must match the
// whole body; call markers only need to appear in it.
func classify(body string) (MessageType, *int) {
	switch body {
	case markerSticker:
		return TypeSticker, nil
	case markerImage:
		return TypeImage, nil
	case markerVideo:
		return TypeVideo, nil
	case markerVoice:
		return TypeVoice, nil
	case markerFile:
		return TypeFile, nil
	}
	if strings.Contains(body, markerMissedCall) {
		return TypeMissedCall, nil
	}
	if m := callPattern.FindStringSubmatch(body); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		seconds, _ := strconv.Atoi(m[2])
		d := minutes*60 + seconds
		return TypeCall, &d
	}
	return TypeText, nil
}

// parseClock accepts "H:MM", "HH:MM:SS" and the 午前/午後 prefixed forms some
// exports use.
func parseClock(tok string) (hour, minute, second int, ok bool) {
	am, pm := false, false
	switch {
	case strings.HasPrefix(tok, "午前"):
		am, tok = true, strings.TrimPrefix(tok, "午前")
	case strings.HasPrefix(tok, "午後"):
		pm, tok = true, strings.TrimPrefix(tok, "午後")
	}

	fields := strings.Split(strings.TrimSpace(tok), ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	hour, minute, second = vals[0], vals[1], vals[2]

	if pm && hour < 12 {
		hour += 12
	}
	if am && hour == 12 {
		hour = 0
	}
	if hour > 23 || minute > 59 || second > 59 {
		return 0, 0, 0, false
	}
	return hour, minute, second, true
}
