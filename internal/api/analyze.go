package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/validation"
)

var (
	errLogTooLarge = errors.New("talk log too large")
	errLogMissing  = errors.New("talk log missing")
)

// TextReportResponse is the body of POST /api/v1/analyze/text
type TextReportResponse struct {
	Chunks []string `json:"chunks"`
}

// handleAnalyze returns the full analytics report as JSON.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyzeRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleAnalyzeText returns the chat-style text report, already split into
// LINE-sized chunks.
func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyzeRequest(w, r)
	if !ok {
		return
	}
	text := analytics.BuildTextReport(report)
	respondJSON(w, http.StatusOK, TextReportResponse{
		Chunks: analytics.SplitIntoChunks(text, analytics.MaxChunkRunes),
	})
}

// analyzeRequest reads and analyzes the uploaded log. It writes the error
// response itself and reports false on failure.
func (s *Server) analyzeRequest(w http.ResponseWriter, r *http.Request) (*analytics.Report, bool) {
	log := logger.Ctx(r.Context())

	hint := r.URL.Query().Get("me")
	if err := validation.ValidateNameHint(hint); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	raw, err := s.readLog(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, errLogTooLarge), errors.As(err, &maxErr):
			respondError(w, http.StatusRequestEntityTooLarge, "Talk log too large")
		case errors.Is(err, errLogMissing):
			respondError(w, http.StatusBadRequest, "Talk log is empty")
		default:
			log.Warn("failed to read talk log", "error", err)
			respondError(w, http.StatusBadRequest, "Failed to read talk log")
		}
		return nil, false
	}

	messages, err := analytics.NewParser(nil).ParseReader(bytes.NewReader(raw))
	if err != nil {
		log.Warn("failed to parse talk log", "error", err)
		respondError(w, http.StatusUnprocessableEntity, "Failed to parse talk log")
		return nil, false
	}
	if len(messages) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "No messages found in talk log")
		return nil, false
	}

	report := analytics.Analyze(messages, hint, analytics.Options{
		Now:   s.cfg.Now(),
		Nouns: s.cfg.Nouns,
	})
	log.Info("talk log analyzed",
		"message_count", report.MessageCount,
		"overall_score", report.Compatibility.Overall)
	return report, true
}

// readLog returns the talk log from a raw body or from the "file" field of
// a multipart form.
func (s *Server) readLog(r *http.Request) ([]byte, error) {
	body := io.Reader(r.Body)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, err
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil, errLogMissing
			}
			if err != nil {
				return nil, err
			}
			if part.FormName() == "file" {
				body = part
				break
			}
		}
	}

	raw, err := io.ReadAll(io.LimitReader(body, s.cfg.MaxLogBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > s.cfg.MaxLogBytes {
		return nil, errLogTooLarge
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errLogMissing
	}
	return raw, nil
}
