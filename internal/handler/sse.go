package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Event types written on the chat stream.
const (
	EventMetadata = "metadata"
	EventDelta    = "delta"
	EventError    = "error"
)

// sseWriter frames JSON payloads as server-sent events:
//
//	data: {"type":"delta","text":"..."}\n\n
//
// Each event is flushed immediately so the client renders tokens as they
// arrive.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newSSEWriter commits the 200 response with stream headers. After this
// point errors can only be reported as events.
func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	// A stream outlives server.write-timeout. Writers that cannot clear the
	// deadline keep it, and long answers get cut there.
	_ = rc.SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, rc: rc}
}

func (s *sseWriter) Send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("handler/sse: encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("handler/sse: writing event: %w", err)
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("handler/sse: flushing: %w", err)
	}
	return nil
}
