// Package state holds WizardState, the mutable record owned exclusively by
// a single executing scenario, and its nested record types. The cursor
// bookkeeping here is grounded on the teacher's task.State/workflow.State
// dispatch-on-event pattern (engine/domain/task/state.go UpdateFromEvent),
// adapted from "dispatch on NATS event" to "dispatch on step-kind return
// value" since this engine is single-process.
package state

import (
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
)

// Phase is the executor's top-level cursor.
type Phase string

const (
	PhaseScenario Phase = "scenario"
	PhasePostRun  Phase = "post-run"
	PhaseComplete Phase = "complete"
)

// CommandExecutionRecord is one entry of State.History, appended after
// every command descriptor runs (including synthetic plan-compiler records).
type CommandExecutionRecord struct {
	// ID is a core.MustNewID() value stamped at construction, distinct
	// from the run's runId (which stays the fixed
	// YYYYMMDD-HHMMSS-<scenarioId> format checkpoint.NewRunID produces).
	ID         string         `json:"id"`
	FlowID     string         `json:"flowId"`
	StepID     string         `json:"stepId"`
	Command    string         `json:"command"`
	Success    bool           `json:"success"`
	ExitCode   int            `json:"exitCode"`
	DurationMs int64          `json:"durationMs"`
	Stdout     string         `json:"stdout,omitempty"`
	Stderr     string         `json:"stderr,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	EndedAt    time.Time      `json:"endedAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IntegrationTiming is one `[integration][timing]` payload scraped from a
// command's captured stdout.
type IntegrationTiming struct {
	FlowID        string         `json:"flowId"`
	StepID        string         `json:"stepId"`
	WorkflowID    string         `json:"workflowId,omitempty"`
	WorkflowLabel string         `json:"workflowLabel,omitempty"`
	Command       string         `json:"command"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// FlowRun records one invocation of a flow (base, group, iterate child, or
// post-run hook).
type FlowRun struct {
	FlowID      string    `json:"flowId"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	DurationMs  int64     `json:"durationMs"`
	ExitedEarly bool      `json:"exitedEarly"`
}

// Retry is one auto-retry/auto-transition attempt recorded by the command
// failure handler.
type Retry struct {
	FlowID   string `json:"flowId"`
	StepID   string `json:"stepId"`
	Strategy string `json:"strategy"`
	Attempt  int    `json:"attempt"`
}

// SkippedStep records a step skipped via a policy/auto/non-interactive
// transition rather than executed.
type SkippedStep struct {
	FlowID string `json:"flowId"`
	StepID string `json:"stepId"`
	Reason string `json:"reason"`
}

// PolicyDecisionRecord is the in-state mirror of every policy.decision
// event, recorded by the always-installed PolicyDecisionSink.
type PolicyDecisionRecord struct {
	FlowID        string `json:"flowId"`
	StepID        string `json:"stepId"`
	RuleID        string `json:"ruleId,omitempty"`
	Level         string `json:"level"`
	EnforcedLevel string `json:"enforcedLevel"`
	Acknowledged  bool   `json:"acknowledged"`
	Command       string `json:"command,omitempty"`
}

// Iteration is the current {index,total,value,key?} of an in-progress
// iterate step, restored to its previous value (nil if none) on exit.
type Iteration struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Value any    `json:"value"`
	Key   string `json:"key,omitempty"`
}

// WizardState is the mutable record owned by a single executing scenario.
type WizardState struct {
	Scenario *scenario.Scenario `json:"scenario"`
	Answers  map[string]any     `json:"answers"`

	Identity *scenario.Identity `json:"identity,omitempty"`

	History       []CommandExecutionRecord `json:"history"`
	LastCommand   *CommandExecutionRecord  `json:"lastCommand,omitempty"`
	CompletedSteps int                     `json:"completedSteps"`
	FailedSteps    int                     `json:"failedSteps"`

	IntegrationTimings []IntegrationTiming `json:"integrationTimings"`
	FlowRuns           []FlowRun           `json:"flowRuns"`

	Retries         []Retry                `json:"retries"`
	SkippedSteps    []SkippedStep          `json:"skippedSteps"`
	PolicyDecisions []PolicyDecisionRecord `json:"policyDecisions"`

	AutoActionCounts map[string]int `json:"autoActionCounts"`

	Iteration *Iteration `json:"iteration,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	ExitedEarly bool       `json:"exitedEarly"`
	RunID       string     `json:"runId,omitempty"`

	FlowCursor    string `json:"flowCursor"`
	StepCursor    string `json:"stepCursor"`
	Phase         Phase  `json:"phase"`
	PostRunCursor int    `json:"postRunCursor"`

	Error *RecordedError `json:"error,omitempty"`
}

// RecordedError is the {name,message,stack} shape checkpoints serialize an
// error into; custom fields beyond these are lost on round-trip (spec.md
// §9 open question, carried forward unchanged).
type RecordedError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// New creates a fresh WizardState for sc, in the "scenario" phase starting
// at its base flow.
func New(sc *scenario.Scenario, runID string) *WizardState {
	return &WizardState{
		Scenario:         sc,
		Answers:          make(map[string]any),
		History:          make([]CommandExecutionRecord, 0),
		AutoActionCounts: make(map[string]int),
		StartedAt:        time.Now(),
		RunID:            runID,
		FlowCursor:       sc.Flow,
		Phase:            PhaseScenario,
	}
}

// AutoActionKey returns the "flow:step" key AutoActionCounts is keyed by.
func AutoActionKey(flowID, stepID string) string {
	return flowID + ":" + stepID
}

// RecordHistory appends rec to History and updates LastCommand.
func (s *WizardState) RecordHistory(rec CommandExecutionRecord) {
	s.History = append(s.History, rec)
	s.LastCommand = &s.History[len(s.History)-1]
}

// Complete marks the state as finished: sets EndedAt and Phase=complete.
func (s *WizardState) Complete() {
	now := time.Now()
	s.EndedAt = &now
	s.Phase = PhaseComplete
}
