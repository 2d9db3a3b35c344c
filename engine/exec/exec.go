// Package exec implements the Execution Engine (spec.md §4.4): a
// step-level state machine driven by the same cursors and step.Kind switch
// engine/plan dry-traverses, so the two walkers can never see a step kind
// the other doesn't. Grounded on the teacher's task.State/workflow engine
// main loop (engine/domain/task), adapted from "dispatch on NATS event" to
// "dispatch on step-kind return value" for this single-process engine.
package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/checkpoint"
	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/policy"
	"github.com/mathieu007/dev-wizard-engine/engine/prompt"
	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// Mode selects the executor's top-level run mode.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeDryRun  Mode = "dry-run"
	ModeCollect Mode = "collect"
)

// Options configures one Executor run.
type Options struct {
	Mode           Mode
	Interactive    bool
	RepoRoot       string
	Overrides      map[string]any
	ApplyPersisted bool

	InitialState *state.WizardState
	RunID        string

	PromptDriver   wizard.PromptDriver
	PromptRegistry *prompt.Registry
	Renderer       wizard.TemplateRenderer
	Evaluator      wizard.ExpressionEvaluator
	Runner         wizard.CommandRunner
	Persistence    wizard.PersistenceStore
	Plugins        wizard.PluginRegistry
	Computes       wizard.ComputeRegistry
	PolicyEngine   *policy.Engine
	Sink           wizard.LogSink
	Checkpoints    *checkpoint.Store
	GitOpen        func(dir string) (GitRepo, error)
	// CommitAuthor attributes commit-push/branch guard strategies; defaults
	// to core.Author{Name: "dev-wizard", Email: "dev-wizard@local"} when nil.
	CommitAuthor *core.Author
}

// GitRepo is the narrow git surface the git-worktree-guard step needs;
// pkg/gitutil.Repo satisfies it structurally.
type GitRepo interface {
	Status() (*GitStatus, error)
	CreateBranch(name string) error
	StageCommitPush(message, authorName, authorEmail string) error
	Stash(message string) error
}

// GitStatus mirrors pkg/gitutil.Status without importing go-git types into
// this package's exported surface.
type GitStatus struct {
	Clean        bool
	Branch       string
	ChangedFiles []string
}

// stepResult is the normalized outcome of executing one step.
type stepResult struct {
	next   step.Next
	status string // success, warning, error
}

const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

// Executor runs one scenario to completion (or early exit) against a
// composed Config.
type Executor struct {
	cfg  *wizard.Config
	opts Options
	st   *state.WizardState
	sc   *scenario.Scenario
}

func NewExecutor(cfg *wizard.Config, scenarioID string, opts Options) (*Executor, error) {
	sc, ok := cfg.FindScenario(scenarioID)
	if !ok {
		return nil, core.NewError(fmt.Errorf("scenario %q not found", scenarioID), "SCENARIO_UNKNOWN", map[string]any{"scenarioId": scenarioID})
	}
	if opts.Mode == "" {
		opts.Mode = ModeLive
	}

	st := opts.InitialState
	if st == nil {
		runID := opts.RunID
		if runID == "" {
			runID = checkpoint.NewRunID(time.Now(), sc.ID)
		}
		st = state.New(sc, runID)
	}

	return &Executor{cfg: cfg, opts: opts, st: st, sc: sc}, nil
}

// State returns the executor's live WizardState, safe to read after Run
// returns (or mid-run, for a caller polling progress).
func (e *Executor) State() *state.WizardState {
	return e.st
}

// Run drives the scenario to completion: the "scenario" phase (base flow
// plus chained scenario.flows), then "post-run" hooks, then "complete".
func (e *Executor) Run(ctx context.Context) (*state.WizardState, error) {
	e.emit(telemetry.NewEvent(telemetry.TypeScenarioStart, "", ""))
	start := time.Now()

	var runErr error
	if e.st.Phase == state.PhaseScenario {
		runErr = e.runScenarioPhase(ctx)
	}
	if runErr == nil && e.st.Phase == state.PhasePostRun {
		runErr = e.runPostRunPhase(ctx)
	}

	e.st.Complete()
	e.checkpoint(true)
	e.flushPersistence()

	failed := runErr != nil || e.st.FailedSteps > 0
	ev := telemetry.ScenarioCompleteEvent{
		Event:      telemetry.NewEvent(telemetry.TypeScenarioComplete, "", ""),
		State:      e.st,
		Failed:     failed,
		DurationMs: time.Since(start).Milliseconds(),
	}
	e.emit(ev)
	return e.st, runErr
}

func (e *Executor) runScenarioPhase(ctx context.Context) error {
	seq := e.sc.FlowSequence()
	startIdx := 0
	for i, id := range seq {
		if id == e.st.FlowCursor {
			startIdx = i
			break
		}
	}
	for _, flowID := range seq[startIdx:] {
		exited, err := e.runFlow(ctx, flowID)
		if err != nil {
			return err
		}
		if exited {
			e.st.ExitedEarly = true
			break
		}
	}
	e.st.Phase = state.PhasePostRun
	e.st.PostRunCursor = 0
	return nil
}

func (e *Executor) runPostRunPhase(ctx context.Context) error {
	if e.opts.Mode == ModeCollect {
		e.st.Phase = state.PhaseComplete
		return nil
	}
	overallSuccess := !e.st.ExitedEarly && e.st.FailedSteps == 0

	for i := e.st.PostRunCursor; i < len(e.sc.PostRun); i++ {
		hook := e.sc.PostRun[i]
		e.st.PostRunCursor = i
		if !hookApplies(hook.When, overallSuccess) {
			continue
		}
		if _, err := e.runFlow(ctx, hook.Flow); err != nil {
			return err
		}
	}
	e.st.Phase = state.PhaseComplete
	return nil
}

func hookApplies(when scenario.PostRunWhen, overallSuccess bool) bool {
	switch when {
	case scenario.PostRunAlways:
		return true
	case scenario.PostRunOnSuccess:
		return overallSuccess
	case scenario.PostRunOnFailure:
		return !overallSuccess
	default:
		return true
	}
}

// runFlow executes every step of flowID in order, honoring jump/repeat/exit
// transitions. Returns exitedEarly=true if any step returned next=exit.
func (e *Executor) runFlow(ctx context.Context, flowID string) (bool, error) {
	f, ok := e.cfg.FindFlow(flowID)
	if !ok {
		return false, core.NewError(fmt.Errorf("flow %q not found", flowID), "UNKNOWN_FLOW_REF", map[string]any{"flow": flowID})
	}
	started := time.Now()
	e.st.FlowCursor = flowID

	idx := make(map[string]int, len(f.Steps))
	for i, s := range f.Steps {
		idx[s.ID] = i
	}

	startCursor := e.st.StepCursor
	pos := 0
	if startCursor != "" {
		if i, ok := idx[startCursor]; ok {
			pos = i
		}
	}

	exited := false
	for pos < len(f.Steps) {
		s := f.Steps[pos]
		e.st.StepCursor = s.ID

		e.emit(telemetry.NewEvent(telemetry.TypeStepStart, flowID, s.ID))
		stepStart := time.Now()
		res, err := e.executeStep(ctx, flowID, s)
		if err != nil {
			return false, err
		}
		if res.next != step.NextRepeat {
			e.st.CompletedSteps++
		}
		if res.status == statusError {
			e.st.FailedSteps++
		}
		e.emit(stepCompleteEvent(flowID, s.ID, res, time.Since(stepStart)))
		e.checkpoint(false)

		switch res.next {
		case step.NextUndefined:
			pos++
		case step.NextExit:
			exited = true
			pos = len(f.Steps)
		case step.NextRepeat:
			// re-execute same position
		default:
			target, ok := idx[string(res.next)]
			if !ok {
				return false, core.NewError(fmt.Errorf("step %q targets unknown step %q in flow %q", s.ID, res.next, flowID), "UNKNOWN_STEP_TARGET", map[string]any{"flow": flowID, "step": s.ID, "target": string(res.next)})
			}
			pos = target
		}
	}

	e.st.FlowRuns = append(e.st.FlowRuns, state.FlowRun{
		FlowID:      flowID,
		StartedAt:   started,
		EndedAt:     time.Now(),
		DurationMs:  time.Since(started).Milliseconds(),
		ExitedEarly: exited,
	})
	return exited, nil
}

func (e *Executor) executeStep(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	switch s.Type {
	case step.KindPrompt:
		return e.executePrompt(ctx, flowID, s)
	case step.KindCommand:
		return e.executeCommand(ctx, flowID, s)
	case step.KindMessage:
		return e.executeMessage(flowID, s)
	case step.KindBranch:
		return e.executeBranch(flowID, s)
	case step.KindGroup:
		return e.executeGroup(ctx, flowID, s)
	case step.KindIterate:
		return e.executeIterate(ctx, flowID, s)
	case step.KindCompute:
		return e.executeCompute(ctx, flowID, s)
	case step.KindGitWorktreeGuard:
		return e.executeGuard(ctx, flowID, s)
	default:
		return e.executePlugin(ctx, flowID, s)
	}
}

func stepCompleteEvent(flowID, stepID string, res stepResult, dur time.Duration) any {
	type stepCompletePayload struct {
		wizard.Event
		Next       string `json:"next,omitempty"`
		Status     string `json:"status"`
		DurationMs int64  `json:"durationMs"`
	}
	return stepCompletePayload{
		Event:      telemetry.NewEvent(telemetry.TypeStepComplete, flowID, stepID),
		Next:       string(res.next),
		Status:     res.status,
		DurationMs: dur.Milliseconds(),
	}
}

func (e *Executor) emit(event any) {
	if e.opts.Sink == nil {
		return
	}
	_ = e.opts.Sink.Handle(context.Background(), event)
}

func (e *Executor) note(level step.Level, message string, details map[string]any) {
	if e.opts.Sink == nil {
		return
	}
	e.opts.Sink.Note(context.Background(), level, message, details)
}

func (e *Executor) checkpoint(force bool) {
	if e.opts.Checkpoints == nil {
		return
	}
	meta := &checkpoint.Metadata{
		ID:            e.st.RunID,
		ScenarioID:    e.sc.ID,
		ScenarioLabel: e.sc.Label,
		StartedAt:     e.st.StartedAt,
		DryRun:        e.opts.Mode == ModeDryRun,
		FlowCursor:    e.st.FlowCursor,
		StepCursor:    e.st.StepCursor,
		Phase:         string(e.st.Phase),
		PostRunCursor: e.st.PostRunCursor,
		Status:        checkpoint.StatusRunning,
	}
	if e.st.Phase == state.PhaseComplete {
		status := checkpoint.StatusCompleted
		if e.st.FailedSteps > 0 || e.st.ExitedEarly {
			status = checkpoint.StatusFailed
		}
		_ = e.opts.Checkpoints.Finalize(e.st.RunID, e.st, meta, status)
		return
	}
	_ = e.opts.Checkpoints.Save(e.st.RunID, e.st, meta, force)
}

// flushPersistence writes any prompt answers persisted mid-run to disk.
// persistPromptAnswer only marks the store dirty via Set; nothing actually
// durable happens until Save is called, so Run flushes once at the end
// rather than after every single prompt.
func (e *Executor) flushPersistence() {
	if e.opts.Persistence == nil {
		return
	}
	if err := e.opts.Persistence.Save(); err != nil {
		e.note(step.LevelWarning, "failed to persist prompt answers", map[string]any{"error": err.Error()})
	}
}
