// Package plan compiles a composed Config plus a scenario id into a
// ScenarioPlan: a fully resolved, side-effect-free projection used for
// preview and review, without invoking external commands, prompting an
// operator, or writing files. The dry traversal reuses the step-kind
// dispatch table defined once in engine/step and shared with engine/exec
// (step.Kind switch), grounded on the teacher's pattern of a single
// task.Type enum consumed by both the validator and the executor.
package plan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/policy"
	"github.com/mathieu007/dev-wizard-engine/engine/prompt"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// TargetMode selects whether a plan previews a dry-run or a live execution.
type TargetMode string

const (
	TargetDryRun TargetMode = "dry-run"
	TargetLive   TargetMode = "live"
)

// Preferences are the caller's expand env/template/branch flags (all
// default false), copied unchanged into the plan output for a caller
// formatting the plan (pretty/NDJSON/JSON). The compiler itself renders
// templates and evaluates branches the same way whatever they say.
type Preferences struct {
	ExpandEnv       bool `json:"expandEnv"`
	ExpandTemplates bool `json:"expandTemplates"`
	ExpandBranches  bool `json:"expandBranches"`
}

// Options configures one Compile call.
type Options struct {
	TargetMode     TargetMode
	Overrides      map[string]any
	Preferences    Preferences
	ApplyPersisted bool
	RepoRoot       string

	PromptRegistry *prompt.Registry
	PolicyEngine   *policy.Engine
	Renderer       wizard.TemplateRenderer
	Evaluator      wizard.ExpressionEvaluator
	Persistence    wizard.PersistenceStore
	Plugins        wizard.PluginRegistry
	Computes       wizard.ComputeRegistry
	GitOpen        func(dir string) (GitStatusProbe, error)
}

// GitStatusProbe is the narrow git-status surface the guard planner needs;
// pkg/gitutil.Repo satisfies it.
type GitStatusProbe interface {
	Status() (*GitStatus, error)
}

// GitStatus mirrors pkg/gitutil.Status's shape without importing go-git
// types into this package's public surface.
type GitStatus struct {
	Clean        bool
	Branch       string
	ChangedFiles []string
}

// Event is one entry of a ScenarioPlan's ordered events list, parallel to
// the plan's structure (plan.meta, plan.flow, plan.step, plan.command).
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flowId,omitempty"`
	StepID    string         `json:"stepId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ScenarioPlan is the compiler's fully resolved output.
type ScenarioPlan struct {
	ScenarioID         string      `json:"scenarioId"`
	TargetMode         TargetMode  `json:"targetMode"`
	Preferences        Preferences `json:"preferences"`
	ConsumedOverrides  []string    `json:"consumedOverrides"`
	PendingPromptCount int         `json:"pendingPromptCount"`
	Flows              []FlowPlan  `json:"flows"`
	Events             []Event     `json:"events"`
	Warnings           []string    `json:"warnings,omitempty"`
}

// FlowPlan previews one flow's steps in order.
type FlowPlan struct {
	FlowID string     `json:"flowId"`
	Steps  []StepPlan `json:"steps"`
}

// StepPlan is the tagged preview of one step; exactly one of the *Plan
// fields is populated, selected by Type — the same "sum type over virtual
// dispatch" discipline step.Step itself follows.
type StepPlan struct {
	ID    string   `json:"id"`
	Type  step.Kind `json:"type"`
	Label string   `json:"label,omitempty"`
	Note  string   `json:"note,omitempty"`

	Command *CommandStepPlan `json:"command,omitempty"`
	Prompt  *PromptStepPlan  `json:"prompt,omitempty"`
	Message *MessageStepPlan `json:"message,omitempty"`
	Branch  *BranchStepPlan  `json:"branch,omitempty"`
	Group   *GroupStepPlan   `json:"group,omitempty"`
	Iterate *IterateStepPlan `json:"iterate,omitempty"`
	Compute *ComputeStepPlan `json:"compute,omitempty"`
	Guard   *GuardStepPlan   `json:"guard,omitempty"`
	Plugin  *PluginStepPlan  `json:"plugin,omitempty"`
}

// compiler holds the mutable bookkeeping for one Compile call: a simulated
// WizardState (so downstream branches/templates can reference prior
// commands/answers exactly like the executor), consumed-override tracking,
// and the ordered event/warning lists.
type compiler struct {
	cfg  *wizard.Config
	opts Options
	st   *state.WizardState

	consumed   map[string]bool
	events     []Event
	warnings   []string
	pending    int
	groupDepth int
}

const maxGroupDepth = 64

// Compile produces a ScenarioPlan for scenarioID.
func Compile(ctx context.Context, cfg *wizard.Config, scenarioID string, opts Options) (*ScenarioPlan, error) {
	sc, ok := cfg.FindScenario(scenarioID)
	if !ok {
		return nil, core.NewError(fmt.Errorf("scenario %q not found", scenarioID), "SCENARIO_UNKNOWN", map[string]any{"scenarioId": scenarioID})
	}
	if opts.TargetMode == "" {
		opts.TargetMode = TargetDryRun
	}

	c := &compiler{
		cfg:      cfg,
		opts:     opts,
		st:       state.New(sc, ""),
		consumed: make(map[string]bool),
	}
	c.emit("plan.meta", "", "", map[string]any{"scenarioId": scenarioID})

	out := &ScenarioPlan{
		ScenarioID:  scenarioID,
		TargetMode:  opts.TargetMode,
		Preferences: opts.Preferences,
	}
	for _, flowID := range sc.FlowSequence() {
		fp, err := c.compileFlow(ctx, flowID)
		if err != nil {
			return nil, err
		}
		out.Flows = append(out.Flows, fp)
	}

	keys := make([]string, 0, len(c.consumed))
	for k := range c.consumed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out.ConsumedOverrides = keys
	out.PendingPromptCount = c.pending
	out.Events = c.events
	out.Warnings = c.warnings
	return out, nil
}

func (c *compiler) compileFlow(ctx context.Context, flowID string) (FlowPlan, error) {
	f, ok := c.cfg.FindFlow(flowID)
	if !ok {
		return FlowPlan{}, core.NewError(fmt.Errorf("flow %q not found", flowID), "UNKNOWN_FLOW_REF", map[string]any{"flow": flowID})
	}
	c.emit("plan.flow", flowID, "", nil)
	c.st.FlowCursor = flowID

	fp := FlowPlan{FlowID: flowID}
	for _, s := range f.Steps {
		c.st.StepCursor = s.ID
		sp, err := c.compileStep(ctx, flowID, s)
		if err != nil {
			return FlowPlan{}, err
		}
		fp.Steps = append(fp.Steps, sp)
	}
	return fp, nil
}

func (c *compiler) compileStep(ctx context.Context, flowID string, s step.Step) (StepPlan, error) {
	c.emit("plan.step", flowID, s.ID, map[string]any{"type": string(s.Type)})
	sp := StepPlan{ID: s.ID, Type: s.Type, Label: s.Label}

	switch s.Type {
	case step.KindCommand:
		return c.compileCommand(ctx, flowID, s, sp)
	case step.KindPrompt:
		return c.compilePrompt(ctx, flowID, s, sp)
	case step.KindMessage:
		return c.compileMessage(flowID, s, sp)
	case step.KindBranch:
		return c.compileBranch(flowID, s, sp)
	case step.KindGroup:
		return c.compileGroup(ctx, flowID, s, sp)
	case step.KindIterate:
		return c.compileIterate(ctx, flowID, s, sp)
	case step.KindCompute:
		return c.compileCompute(flowID, s, sp)
	case step.KindGitWorktreeGuard:
		return c.compileGuard(flowID, s, sp)
	default:
		return c.compilePlugin(ctx, flowID, s, sp)
	}
}

func (c *compiler) emit(typ, flowID, stepID string, data map[string]any) {
	c.events = append(c.events, Event{Type: typ, Timestamp: time.Now().UTC(), FlowID: flowID, StepID: stepID, Data: data})
}

func (c *compiler) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *compiler) render(tmpl string, stepMetadata map[string]any, iteration *state.Iteration) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	if c.opts.Renderer == nil {
		return tmpl, nil
	}
	return c.opts.Renderer.Render(tmpl, c.templateContext(stepMetadata, iteration))
}

func (c *compiler) evaluate(expr string, stepMetadata map[string]any) (any, error) {
	if c.opts.Evaluator == nil {
		return nil, fmt.Errorf("no expression evaluator configured")
	}
	return c.opts.Evaluator.Evaluate(expr, c.templateContext(stepMetadata, nil))
}
