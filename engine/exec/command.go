package exec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/policy"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

type policyDecisionEventAlias = telemetry.PolicyDecisionEvent

func (e *Executor) executeCommand(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	spec := s.Command
	if e.opts.Mode == ModeCollect && !spec.CollectSafe {
		return stepResult{}, core.NewError(nil, "COLLECT_UNSAFE_COMMAND", map[string]any{"flowId": flowID, "stepId": s.ID})
	}

	for _, desc := range spec.Commands {
		res, err := e.executeCommandDescriptor(ctx, flowID, s, spec, desc)
		if err != nil {
			return stepResult{}, err
		}
		if res.status == statusError {
			if desc.ContinueOnFail {
				e.note(step.LevelWarning, "command failed, continuing (continueOnFail)", map[string]any{"flowId": flowID, "stepId": s.ID, "run": desc.Run})
				continue
			}
			return e.handleCommandFailure(ctx, flowID, s, spec, desc)
		}
	}

	next := step.NextUndefined
	if spec.OnSuccess != nil {
		next = spec.OnSuccess.Next
	}
	return stepResult{next: next, status: statusSuccess}, nil
}

// executeCommandDescriptor resolves, policy-checks, and runs one
// descriptor, recording history and storing stdout per its knobs. Only
// I/O errors unrelated to the command's own exit code return a Go error;
// a non-zero exit or a policy block surfaces as status=error for the
// caller's failure-handling contract to interpret.
func (e *Executor) executeCommandDescriptor(ctx context.Context, flowID string, s step.Step, spec *step.CommandSpec, desc step.CommandDescriptor) (stepResult, error) {
	var presetEnv, defaultsEnv core.EnvMap
	if desc.Preset != "" {
		preset, _, ok := e.cfg.ResolvePreset(desc.Preset)
		if !ok {
			e.note(step.LevelWarning, "command references unknown preset", map[string]any{"flowId": flowID, "stepId": s.ID, "preset": desc.Preset})
		} else {
			presetEnv = preset.Env
		}
	}
	if spec.Defaults != nil {
		defaultsEnv = spec.Defaults.Env
	}
	merged, _ := core.MergeEnvLayers(presetEnv, defaultsEnv, desc.Env)

	rendered, err := e.render(desc.Run, map[string]any{"id": s.ID, "kind": "command"})
	if err != nil {
		return stepResult{}, err
	}

	if e.opts.Mode == ModeDryRun && desc.DryRunStrategy != step.DryRunStrategyExecute {
		e.note(step.LevelInfo, "dry-run: not executing", map[string]any{"flowId": flowID, "stepId": s.ID, "run": rendered})
		e.st.RecordHistory(syntheticSuccessRecord(flowID, s.ID, rendered))
		return stepResult{status: statusSuccess}, nil
	}

	if blocked, err := e.enforcePolicy(ctx, flowID, s.ID, desc.Preset, rendered); err != nil {
		return stepResult{}, err
	} else if blocked {
		e.st.RecordHistory(state.CommandExecutionRecord{
			ID:        core.MustNewID().String(),
			FlowID:    flowID, StepID: s.ID, Command: rendered, Success: false,
			StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(),
		})
		return stepResult{status: statusError}, nil
	}

	req := wizard.RunRequest{
		Run:       rendered,
		CWD:       desc.CWD,
		Env:       merged,
		Shell:     desc.IsShellEnabled(),
		TimeoutMs: desc.TimeoutMs,
	}

	var warnTimer *time.Timer
	if desc.WarnAfterMs > 0 {
		warnTimer = time.AfterFunc(time.Duration(desc.WarnAfterMs)*time.Millisecond, func() {
			e.note(step.LevelWarning, "command still running", map[string]any{"flowId": flowID, "stepId": s.ID, "run": rendered, "afterMs": desc.WarnAfterMs})
		})
	}
	started := time.Now().UTC()
	result, runErr := e.opts.Runner.Run(ctx, req)
	if warnTimer != nil {
		warnTimer.Stop()
	}
	ended := time.Now().UTC()
	if runErr != nil {
		return stepResult{}, core.NewError(runErr, "COMMAND_RUN_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID, "run": rendered})
	}

	success := result.ExitCode == 0 && !result.TimedOut
	e.scrapeIntegrationTimings(flowID, s.ID, rendered, result.Stdout, s)

	rec := state.CommandExecutionRecord{
		ID:       core.MustNewID().String(),
		FlowID:   flowID, StepID: s.ID, Command: rendered, Success: success,
		ExitCode: result.ExitCode, DurationMs: result.DurationMs,
		Stdout: result.Stdout, Stderr: result.Stderr,
		StartedAt: started, EndedAt: ended,
	}
	e.st.RecordHistory(rec)

	if err := e.storeCommandOutput(flowID, s.ID, desc, success, result.Stdout); err != nil {
		return stepResult{}, err
	}

	e.emit(telemetry.CommandResultEvent{
		Event:      telemetry.NewEvent(telemetry.TypeCommandResult, flowID, s.ID),
		Command:    rendered,
		ExitCode:   result.ExitCode,
		Success:    success,
		DurationMs: result.DurationMs,
	})

	if !success {
		return stepResult{status: statusError}, nil
	}
	return stepResult{status: statusSuccess}, nil
}

// storeCommandOutput implements storeWhen/parseJson/redactKeys on a
// descriptor's captured stdout.
func (e *Executor) storeCommandOutput(flowID, stepID string, desc step.CommandDescriptor, success bool, stdout string) error {
	if desc.StoreStdoutAs == "" {
		return nil
	}
	when := desc.StoreWhen
	if when == "" {
		when = step.StoreWhenSuccess
	}
	store := when == step.StoreWhenAlways ||
		(success && when == step.StoreWhenSuccess) ||
		(!success && when == step.StoreWhenFailure)
	if !store {
		return nil
	}

	var value any = stdout
	if desc.ParseJSON != nil {
		var parsed any
		if err := json.Unmarshal([]byte(stdout), &parsed); err != nil {
			if desc.ParseJSON.OnError == step.ParseJSONOnErrorFail {
				return core.NewError(err, "COMMAND_STDOUT_PARSE_FAILED", map[string]any{"flowId": flowID, "stepId": stepID})
			}
			e.note(step.LevelWarning, "command stdout failed to parse as JSON, storing raw text", map[string]any{"flowId": flowID, "stepId": stepID})
		} else {
			value = parsed
		}
	}

	if len(desc.RedactKeys) > 0 {
		if obj, ok := value.(map[string]any); ok {
			value = redactKeys(obj, desc.RedactKeys)
		}
	}

	e.st.Answers[desc.StoreStdoutAs] = value
	return nil
}

// redactKeys blanks every key named in keys outright, then runs every
// remaining string value through core.RedactString, mirroring
// core.RedactHeaders's own "named keys fully redacted, the rest scrubbed
// for safety" pattern so a secret that leaks into an unlisted field of a
// command's JSON stdout doesn't survive into state.Answers verbatim.
func redactKeys(obj map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(obj))
	redact := make(map[string]bool, len(keys))
	for _, k := range keys {
		redact[k] = true
	}
	for k, v := range obj {
		if redact[k] {
			out[k] = "[redacted]"
			continue
		}
		if str, ok := v.(string); ok {
			out[k] = core.RedactString(str)
			continue
		}
		out[k] = v
	}
	return out
}

func syntheticSuccessRecord(flowID, stepID, command string) state.CommandExecutionRecord {
	now := time.Now().UTC()
	return state.CommandExecutionRecord{
		ID:     core.MustNewID().String(),
		FlowID: flowID, StepID: stepID, Command: command,
		Success: true, ExitCode: 0, StartedAt: now, EndedAt: now,
	}
}

// enforcePolicy evaluates the command against PolicyEngine, always recording
// the decision into state.PolicyDecisions through a PolicyDecisionSink over
// the run's state and emitting it to the configured telemetry sink, and
// returns blocked=true when a block decision was not (or could not be)
// acknowledged.
func (e *Executor) enforcePolicy(ctx context.Context, flowID, stepID, preset, command string) (bool, error) {
	if e.opts.PolicyEngine == nil {
		return false, nil
	}
	decision := e.opts.PolicyEngine.Evaluate(policy.Query{FlowID: flowID, StepID: stepID, Command: command, Preset: preset})

	ruleID := ""
	if decision.Rule != nil {
		ruleID = decision.Rule.ID
	}
	ev := policyDecisionEventAlias{
		Event:         telemetry.NewEvent(telemetry.TypePolicyDecision, flowID, stepID),
		RuleID:        ruleID,
		Level:         string(decision.Level),
		EnforcedLevel: string(decision.EnforcedLevel),
		Acknowledged:  decision.Acknowledged,
		Command:       command,
	}
	_ = telemetry.NewPolicyDecisionSink(e.st).Handle(ctx, ev)
	e.emit(ev)

	if decision.EnforcedLevel == policy.LevelWarn {
		e.note(step.LevelWarning, decision.String(), map[string]any{"flowId": flowID, "stepId": stepID, "command": command})
		return false, nil
	}
	if decision.EnforcedLevel != policy.LevelBlock {
		return false, nil
	}

	if e.opts.Interactive && e.opts.PromptDriver != nil {
		answer, err := e.opts.PromptDriver.Ask(ctx, wizard.PromptRequest{
			StepID: stepID,
			Mode:   step.ModeConfirm,
			Prompt: decision.String() + " Proceed anyway?",
		})
		if err == nil {
			if ok, _ := answer.(bool); ok {
				if decision.Rule != nil {
					e.opts.PolicyEngine.Acknowledge(decision.Rule.ID)
				}
				return false, nil
			}
		}
	}
	e.note(step.LevelError, "command blocked by policy", map[string]any{"flowId": flowID, "stepId": stepID, "command": command})
	return true, nil
}
