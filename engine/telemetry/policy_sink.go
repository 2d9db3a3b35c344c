package telemetry

import (
	"context"
	"sync"

	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// PolicyDecisionSink is the always-installed sink named in spec.md §4.8:
// it mirrors every policy.decision event into state.WizardState's
// PolicyDecisions slice so downstream reporting doesn't need to replay
// the event stream.
type PolicyDecisionSink struct {
	mu sync.Mutex
	st *state.WizardState
}

var _ wizard.LogSink = (*PolicyDecisionSink)(nil)

// NewPolicyDecisionSink attaches recording to st.
func NewPolicyDecisionSink(st *state.WizardState) *PolicyDecisionSink {
	return &PolicyDecisionSink{st: st}
}

func (s *PolicyDecisionSink) Handle(_ context.Context, event any) error {
	ev, ok := event.(PolicyDecisionEvent)
	if !ok {
		if p, ok := event.(*PolicyDecisionEvent); ok {
			ev = *p
		} else {
			return nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.PolicyDecisions = append(s.st.PolicyDecisions, state.PolicyDecisionRecord{
		FlowID:        ev.FlowID,
		StepID:        ev.StepID,
		RuleID:        ev.RuleID,
		Level:         ev.Level,
		EnforcedLevel: ev.EnforcedLevel,
		Acknowledged:  ev.Acknowledged,
		Command:       ev.Command,
	})
	return nil
}

func (s *PolicyDecisionSink) Note(context.Context, step.Level, string, map[string]any) {}

func (s *PolicyDecisionSink) Close() error { return nil }
