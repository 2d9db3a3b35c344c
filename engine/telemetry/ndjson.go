package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// NDJSONSink writes one JSON-encoded event per line to w.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ wizard.LogSink = (*NDJSONSink)(nil)

// NewNDJSONSink wraps w as a LogSink.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

func (s *NDJSONSink) Handle(_ context.Context, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.w.Write(data)
	return err
}

// Note encodes a synthetic note event with no wire-stable type beyond
// "note" itself.
func (s *NDJSONSink) Note(_ context.Context, level step.Level, message string, details map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(map[string]any{
		"type":    "note",
		"level":   level,
		"message": message,
		"details": details,
	})
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = s.w.Write(data)
}

func (s *NDJSONSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
