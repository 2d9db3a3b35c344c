package exec

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

func (e *Executor) executeCompute(_ context.Context, flowID string, s step.Step) (stepResult, error) {
	spec := s.Compute

	if spec.Handler != "" {
		return e.executeComputeHandler(flowID, s, spec)
	}
	if spec.Values != nil {
		rendered, err := e.renderDeep(s.ID, spec.Values)
		if err != nil {
			return stepResult{}, err
		}
		values, _ := rendered.(map[string]any)
		for k, v := range values {
			e.st.Answers[k] = v
		}
	}
	return stepResult{next: spec.Next, status: statusSuccess}, nil
}

func (e *Executor) executeComputeHandler(flowID string, s step.Step, spec *step.ComputeSpec) (stepResult, error) {
	if e.opts.Computes == nil {
		return stepResult{}, core.NewError(nil, "COMPUTE_HANDLER_UNAVAILABLE", map[string]any{"flowId": flowID, "stepId": s.ID, "handler": spec.Handler})
	}
	handler, ok := e.opts.Computes.Lookup(spec.Handler)
	if !ok {
		return stepResult{}, core.NewError(nil, "COMPUTE_HANDLER_UNKNOWN", map[string]any{"flowId": flowID, "stepId": s.ID, "handler": spec.Handler})
	}

	rendered, err := e.renderDeep(s.ID, spec.Params)
	if err != nil {
		return stepResult{}, err
	}
	params, _ := rendered.(map[string]any)

	result, err := handler(context.Background(), params)
	if err != nil {
		return stepResult{}, core.NewError(err, "COMPUTE_HANDLER_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID, "handler": spec.Handler})
	}

	if spec.StoreAs != "" {
		e.st.Answers[spec.StoreAs] = result
	} else if obj, ok := result.(map[string]any); ok {
		for k, v := range obj {
			e.st.Answers[k] = v
		}
	}
	return stepResult{next: spec.Next, status: statusSuccess}, nil
}
