package telemetry

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// Fanout chains zero or more wizard.LogSinks, dispatching each event/note
// to all of them in attachment order and propagating the first Close
// error while still calling Close on every sink.
type Fanout struct {
	sinks []wizard.LogSink
}

var _ wizard.LogSink = (*Fanout)(nil)

// NewFanout builds a Fanout over sinks, in the order events should be
// delivered.
func NewFanout(sinks ...wizard.LogSink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Attach appends an additional sink to the chain.
func (f *Fanout) Attach(s wizard.LogSink) {
	f.sinks = append(f.sinks, s)
}

// Handle dispatches event to every attached sink in order, returning the
// first error encountered (still invoking the remaining sinks).
func (f *Fanout) Handle(ctx context.Context, event any) error {
	var first error
	for _, s := range f.sinks {
		if err := s.Handle(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Note fans a recommendation/note out to every attached sink.
func (f *Fanout) Note(ctx context.Context, level step.Level, message string, details map[string]any) {
	for _, s := range f.sinks {
		s.Note(ctx, level, message, details)
	}
}

// Close closes every attached sink, returning the first error encountered
// without skipping subsequent sinks' Close calls.
func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
