package wizard

import (
	"context"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// PromptDriver is the external collaborator presenting prompts to an
// operator. Core packages depend only on this interface, never on a
// concrete terminal UI.
type PromptDriver interface {
	// Ask presents spec to the operator and returns the chosen value(s).
	Ask(ctx context.Context, spec PromptRequest) (any, error)
}

// PromptRequest is everything a PromptDriver needs to render one prompt.
type PromptRequest struct {
	StepID             string
	Mode               step.Mode
	Prompt             string
	Options            []step.Option
	DefaultValue        any
	Required            bool
	ShowSelectionOrder  bool
}

// TemplateRenderer renders a Handlebars-style template string against a
// context record.
type TemplateRenderer interface {
	Render(tmpl string, context map[string]any) (string, error)
}

// ExpressionEvaluator evaluates a boolean/value expression over a context
// record, used for branch.when and compute/iterate conditions.
type ExpressionEvaluator interface {
	Evaluate(expr string, context map[string]any) (any, error)
}

// CommandResult is the outcome of one CommandRunner.Run invocation.
type CommandResult struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs int64
	TimedOut   bool
}

// RunRequest is a fully resolved, template-rendered command ready to spawn.
type RunRequest struct {
	Run       string
	CWD       string
	Env       map[string]string
	Shell     bool
	TimeoutMs int
}

// CommandRunner spawns a resolved command descriptor's run string.
type CommandRunner interface {
	Run(ctx context.Context, req RunRequest) (CommandResult, error)
}

// PluginHandler is a plugin module's handler for a custom step type.
type PluginHandler interface {
	Run(ctx context.Context, s *step.Step, context map[string]any) (PluginResult, error)
	// Plan optionally previews the step without side effects. A nil
	// implementation falls back to a bare plugin-plan stub (spec.md §4.3).
	Plan(ctx context.Context, s *step.Step, context map[string]any) (map[string]any, error)
}

// PluginResult normalizes a plugin handler's outcome to the same shape
// every builtin step kind returns.
type PluginResult struct {
	Next   step.Next
	Status string // success, warning, error
}

// PluginRegistry resolves a step's Type to a handler. Read-only after load.
type PluginRegistry interface {
	Lookup(stepType string) (PluginHandler, bool)
}

// ComputeHandler is a registered compute-step handler invoked by id.
type ComputeHandler func(ctx context.Context, params map[string]any) (any, error)

// ComputeRegistry resolves compute step handler names.
type ComputeRegistry interface {
	Lookup(name string) (ComputeHandler, bool)
}

// Event is the common envelope every telemetry event carries; concrete
// event kinds (scenario.start, step.complete, ...) embed Event and add
// their own typed fields. Kept as plain Go structs — this engine is
// single-process and never serializes events to a wire format internally.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	FlowID    string    `json:"flowId,omitempty"`
	StepID    string    `json:"stepId,omitempty"`
}

// LogSink receives the engine's structured event stream. Multiple sinks may
// be attached; the core chains them (engine/telemetry.Fanout).
type LogSink interface {
	Handle(ctx context.Context, event any) error
	Note(ctx context.Context, level step.Level, message string, details map[string]any)
	Close() error
}

// PersistenceStore is the cross-run prompt-answer store (engine/persistence).
type PersistenceStore interface {
	Get(scope string, key string, projectID string) (any, bool)
	Set(scope string, key string, projectID string, value any) error
	Save() error
	ResetAllAnswers() error
}
