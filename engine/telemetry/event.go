// Package telemetry implements the engine's LogSink fanout (spec.md §4.8):
// events are plain Go structs, chained across zero or more sinks, with the
// first Close error propagated without skipping subsequent sinks' Close
// calls. Grounded on the teacher's multi-writer logging pattern
// (pkg/logger wraps a single charmbracelet/log.Logger; this package
// generalizes that to N independent sinks) since the teacher's own NATS
// event-bus transport has no analog in a single-process engine.
package telemetry

import (
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// EventType is the event discriminator named in spec.md §4.8.
const (
	TypeScenarioStart      = "scenario.start"
	TypeScenarioComplete   = "scenario.complete"
	TypeStepStart          = "step.start"
	TypeStepComplete       = "step.complete"
	TypePromptAnswer       = "prompt.answer"
	TypePromptPersistence  = "prompt.persistence"
	TypeBranchDecision     = "branch.decision"
	TypeCommandResult      = "command.result"
	TypePolicyDecision     = "policy.decision"
	TypeShortcutTrigger    = "shortcut.trigger"
)

// NewEvent stamps a wizard.Event envelope with the current time.
func NewEvent(typ, flowID, stepID string) wizard.Event {
	return wizard.Event{Type: typ, Timestamp: time.Now().UTC(), FlowID: flowID, StepID: stepID}
}

// PolicyDecisionEvent is the concrete payload for TypePolicyDecision.
type PolicyDecisionEvent struct {
	wizard.Event
	RuleID        string `json:"ruleId,omitempty"`
	Level         string `json:"level"`
	EnforcedLevel string `json:"enforcedLevel"`
	Acknowledged  bool   `json:"acknowledged"`
	Command       string `json:"command,omitempty"`
}

// ScenarioCompleteEvent is the concrete payload for TypeScenarioComplete,
// carrying the final state so analytics.Writer can pull report data off
// it without the executor threading extra plumbing through LogSink.
type ScenarioCompleteEvent struct {
	wizard.Event
	State      *state.WizardState `json:"-"`
	Failed     bool               `json:"failed"`
	DurationMs int64              `json:"durationMs,omitempty"`
}

// CommandResultEvent is the concrete payload for TypeCommandResult.
type CommandResultEvent struct {
	wizard.Event
	Command    string `json:"command"`
	ExitCode   int    `json:"exitCode"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs"`
}
