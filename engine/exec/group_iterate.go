package exec

import (
	"context"
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

func (e *Executor) executeGroup(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	spec := s.Group
	savedFlow, savedStep := e.st.FlowCursor, e.st.StepCursor
	exited, err := e.runFlow(ctx, spec.Flow)
	e.st.FlowCursor, e.st.StepCursor = savedFlow, savedStep
	if err != nil {
		return stepResult{}, err
	}
	if exited {
		return stepResult{next: step.NextExit, status: statusSuccess}, nil
	}
	return stepResult{next: step.NextUndefined, status: statusSuccess}, nil
}

func (e *Executor) executeIterate(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	spec := s.Iterate

	if spec.Concurrency > 1 {
		e.note(step.LevelWarning, fmt.Sprintf("iterate step %q declares concurrency %d but runs sequentially", s.ID, spec.Concurrency), map[string]any{"flowId": flowID})
	}

	items, err := e.resolveIterateItems(ctx, flowID, s.ID, spec)
	if err != nil {
		return stepResult{}, err
	}

	savedIteration := e.st.Iteration
	failedBefore := e.st.FailedSteps
	savedFlow, savedStep := e.st.FlowCursor, e.st.StepCursor

	for i, item := range items {
		e.st.Iteration = &state.Iteration{Index: i, Total: len(items), Value: item}
		if spec.StoreEachAs != "" {
			e.st.Answers[spec.StoreEachAs] = item
		}
		if spec.Flow != "" {
			exited, err := e.runFlow(ctx, spec.Flow)
			if err != nil {
				e.st.Iteration = savedIteration
				e.st.FlowCursor, e.st.StepCursor = savedFlow, savedStep
				return stepResult{}, err
			}
			if exited {
				break
			}
		}
	}

	e.st.Iteration = savedIteration
	e.st.FlowCursor, e.st.StepCursor = savedFlow, savedStep

	status := statusSuccess
	if e.st.FailedSteps > failedBefore {
		status = statusWarning
	}
	return stepResult{next: step.NextUndefined, status: status}, nil
}

// resolveIterateItems resolves an iterate step's actual item list per
// spec.md §4.3's per-source rules: static items, an answers-key collection,
// or a (json|dynamic) provider via the shared prompt-option registry —
// unlike the plan compiler's preview, dynamic.command is actually invoked
// here since execution has no reason to defer it.
func (e *Executor) resolveIterateItems(ctx context.Context, flowID, stepID string, spec *step.IterateSpec) ([]any, error) {
	if spec.Source == nil || spec.Source.From == "" || spec.Source.From == "array" {
		return spec.Items, nil
	}

	switch spec.Source.From {
	case "answers":
		v, ok := e.st.Answers[spec.Source.AnswersKey]
		if !ok {
			return nil, nil
		}
		items, ok := v.([]any)
		if !ok {
			return nil, core.NewError(nil, "ITERATE_SOURCE_INVALID", map[string]any{"flowId": flowID, "stepId": stepID, "answersKey": spec.Source.AnswersKey})
		}
		return items, nil

	case "json":
		if spec.Source.JSON == nil {
			return nil, core.NewError(nil, "ITERATE_SOURCE_INVALID", map[string]any{"flowId": flowID, "stepId": stepID})
		}
		return e.resolveProviderItems(ctx, "json", map[string]any{"path": spec.Source.JSON.Path, "pointer": spec.Source.JSON.Pointer})

	case "dynamic":
		if spec.Source.Dynamic == nil {
			return nil, core.NewError(nil, "ITERATE_SOURCE_INVALID", map[string]any{"flowId": flowID, "stepId": stepID})
		}
		if e.opts.Mode == ModeCollect && spec.Source.Dynamic.Type == "command" {
			return nil, core.NewError(nil, "COLLECT_DYNAMIC_COMMAND_FORBIDDEN", map[string]any{"flowId": flowID, "stepId": stepID})
		}
		return e.resolveProviderItems(ctx, spec.Source.Dynamic.Type, spec.Source.Dynamic.Config)

	default:
		return nil, core.NewError(nil, "ITERATE_SOURCE_INVALID", map[string]any{"flowId": flowID, "stepId": stepID, "from": spec.Source.From})
	}
}

func (e *Executor) resolveProviderItems(ctx context.Context, providerType string, cfg map[string]any) ([]any, error) {
	if e.opts.PromptRegistry == nil {
		return nil, core.NewError(nil, "PROVIDER_UNAVAILABLE", map[string]any{"type": providerType})
	}
	opts, err := e.opts.PromptRegistry.Resolve(ctx, &step.DynamicOptions{Type: providerType, Config: cfg})
	if err != nil {
		return nil, err
	}
	items := make([]any, len(opts))
	for i, o := range opts {
		items[i] = o.Value
	}
	return items, nil
}
