package analytics

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

var testStart = time.Date(2024, 1, 15, 0, 0, 0, 0, DefaultLocation)

// textMsg builds a text message sent offset after testStart.
func textMsg(offset time.Duration, sender, body string) Message {
	return typedMsg(offset, sender, TypeText, body)
}

func typedMsg(offset time.Duration, sender string, typ MessageType, body string) Message {
	at := testStart.Add(offset)
	return Message{
		Datetime: at.Format("2006/01/02 15:04"),
		At:       at,
		Sender:   sender,
		Type:     typ,
		Body:     body,
	}
}

// alternatingLog returns n messages per side, alternating every gap, all
// with the same body.
func alternatingLog(n int, gap time.Duration, self, other, body string) []Message {
	var msgs []Message
	for i := 0; i < 2*n; i++ {
		sender := self
		if i%2 == 1 {
			sender = other
		}
		msgs = append(msgs, textMsg(time.Duration(i)*gap, sender, body))
	}
	return msgs
}

// exportText renders messages in LINE export layout, one date header per day.
func exportText(msgs []Message) string {
	var sb strings.Builder
	sb.WriteString("[LINE] トーク履歴\n保存日時：2024/02/01 10:00\n\n")
	lastDay := ""
	for _, m := range msgs {
		day := m.At.Format("2006/01/02")
		if day != lastDay {
			fmt.Fprintf(&sb, "%s(%s)\n", day, [...]string{"日", "月", "火", "水", "木", "金", "土"}[m.At.Weekday()])
			lastDay = day
		}
		fmt.Fprintf(&sb, "%s\t%s\t%s\n", m.At.Format("15:04"), m.Sender, m.Body)
	}
	return sb.String()
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}
