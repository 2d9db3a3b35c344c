package exec

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

const (
	shortcutSkip   = "skip"
	shortcutReplay = "replay"
	shortcutAbort  = "abort"
)

// handleCommandFailure implements a failed command descriptor's recovery
// contract, in priority order: a gated auto action, a policy-mapped
// transition, a non-interactive defaultNext, or an interactive action
// picker (the step's own onError.actions plus the fixed skip/replay/abort
// shortcuts).
func (e *Executor) handleCommandFailure(ctx context.Context, flowID string, s step.Step, spec *step.CommandSpec, desc step.CommandDescriptor) (stepResult, error) {
	onErr := spec.OnError
	if onErr == nil {
		return stepResult{next: step.NextUndefined, status: statusError}, nil
	}

	if onErr.Auto != nil {
		if res, handled := e.tryAutoAction(flowID, s.ID, onErr); handled {
			return res, nil
		}
	}

	if onErr.Policy != nil {
		if res, handled, err := e.tryPolicyTransition(flowID, s, onErr.Policy); err != nil {
			return stepResult{}, err
		} else if handled {
			return res, nil
		}
	}

	if !e.opts.Interactive || e.opts.PromptDriver == nil {
		next := step.NextUndefined
		if onErr.DefaultNext != nil {
			next = onErr.DefaultNext.Next
		}
		return stepResult{next: next, status: statusError}, nil
	}

	return e.chooseInteractiveRecovery(ctx, flowID, s, onErr)
}

func (e *Executor) tryAutoAction(flowID, stepID string, onErr *step.OnError) (stepResult, bool) {
	key := state.AutoActionKey(flowID, stepID)
	count := e.st.AutoActionCounts[key]
	limit := onErr.Auto.Limit
	if limit > 0 && count >= limit {
		return stepResult{}, false
	}

	e.st.AutoActionCounts[key] = count + 1
	e.st.Retries = append(e.st.Retries, state.Retry{FlowID: flowID, StepID: stepID, Strategy: onErr.Auto.Strategy, Attempt: count + 1})

	switch onErr.Auto.Strategy {
	case "retry":
		return stepResult{next: step.NextRepeat, status: statusWarning}, true
	case "default":
		next := step.NextUndefined
		if onErr.DefaultNext != nil {
			next = onErr.DefaultNext.Next
		}
		return stepResult{next: next, status: statusWarning}, true
	case "transition":
		return stepResult{next: step.Next(onErr.Auto.Target), status: statusWarning}, true
	case "exit":
		return stepResult{next: step.NextExit, status: statusWarning}, true
	default:
		return stepResult{}, false
	}
}

func (e *Executor) tryPolicyTransition(flowID string, s step.Step, p *step.OnErrorPolicy) (stepResult, bool, error) {
	value, _ := e.st.Answers[p.Key].(string)
	if target, ok := p.Map[value]; ok {
		return stepResult{next: step.Next(target), status: statusWarning}, true, nil
	}
	if p.Default != "" {
		return stepResult{next: step.Next(p.Default), status: statusWarning}, true, nil
	}
	if p.Required && (!e.opts.Interactive || e.opts.PromptDriver == nil) {
		return stepResult{}, false, core.NewError(nil, "ONERROR_POLICY_UNRESOLVED", map[string]any{"flowId": flowID, "stepId": s.ID, "key": p.Key})
	}
	return stepResult{}, false, nil
}

func (e *Executor) chooseInteractiveRecovery(ctx context.Context, flowID string, s step.Step, onErr *step.OnError) (stepResult, error) {
	options := make([]step.Option, 0, len(onErr.Actions)+3)
	for _, a := range onErr.Actions {
		options = append(options, step.Option{Value: a.ID, Label: a.Label})
	}
	options = append(options,
		step.Option{Value: shortcutSkip, Label: "Skip this step"},
		step.Option{Value: shortcutReplay, Label: "Replay this step"},
		step.Option{Value: shortcutAbort, Label: "Abort the scenario"},
	)

	answer, err := e.opts.PromptDriver.Ask(ctx, wizard.PromptRequest{
		StepID:   s.ID,
		Mode:     step.ModeSelect,
		Prompt:   "The command failed. How should the wizard continue?",
		Options:  options,
		Required: true,
	})
	if err != nil {
		return stepResult{}, core.NewError(err, "ONERROR_PROMPT_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
	}
	choice, _ := answer.(string)

	switch choice {
	case shortcutSkip:
		e.st.SkippedSteps = append(e.st.SkippedSteps, state.SkippedStep{FlowID: flowID, StepID: s.ID, Reason: "user skip after command failure"})
		e.emitShortcut(flowID, s.ID, shortcutSkip)
		return stepResult{next: step.NextUndefined, status: statusWarning}, nil
	case shortcutReplay:
		e.emitShortcut(flowID, s.ID, shortcutReplay)
		return stepResult{next: step.NextRepeat, status: statusWarning}, nil
	case shortcutAbort:
		e.emitShortcut(flowID, s.ID, shortcutAbort)
		return stepResult{next: step.NextExit, status: statusError}, nil
	default:
		for _, a := range onErr.Actions {
			if a.ID == choice {
				return stepResult{next: a.Next, status: statusWarning}, nil
			}
		}
		return stepResult{next: step.NextUndefined, status: statusError}, nil
	}
}

type shortcutTriggerEvent struct {
	wizard.Event
	Shortcut string `json:"shortcut"`
}

func (e *Executor) emitShortcut(flowID, stepID, shortcut string) {
	e.emit(shortcutTriggerEvent{Event: telemetry.NewEvent(telemetry.TypeShortcutTrigger, flowID, stepID), Shortcut: shortcut})
}
