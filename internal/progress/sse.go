package progress

import (
	"encoding/json"
	"fmt"
	"io"
)

// flusher — подмножество http.Flusher; объявлено локально, чтобы пакет
// не зависел от net/http.
type flusher interface {
	Flush()
}

// SSEWriter кодирует события в формат Server-Sent Events:
//
//	event: <kind>\n
//	data: <json payload>\n
//	\n
//
// Если writer умеет Flush (например, http.ResponseWriter за интерфейсом
// http.Flusher), каждый записанный блок проталкивается немедленно —
// подписчик видит событие в момент его возникновения.
type SSEWriter struct {
	w io.Writer
}

// NewSSEWriter создаёт SSE-кодировщик поверх writer.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

// Emit реализует интерфейс Sink.
func (s *SSEWriter) Emit(e Event) error {
	payload := e.Payload
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
		return fmt.Errorf("write %s event: %w", e.Kind, err)
	}
	if f, ok := s.w.(flusher); ok {
		f.Flush()
	}
	return nil
}
