package plan

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// ComputeStepPlan previews a compute step's resolved values or handler
// invocation result, mirrored into the simulated answers the same as the
// executor would so downstream branches and templates see them.
type ComputeStepPlan struct {
	StoreAs        string         `json:"storeAs,omitempty"`
	Values         map[string]any `json:"values,omitempty"`
	HandlerInvoked bool           `json:"handlerInvoked"`
	Result         any            `json:"result,omitempty"`
	Note           string         `json:"note,omitempty"`
}

func (c *compiler) compileCompute(flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Compute
	if spec == nil {
		return sp, nil
	}
	cp := &ComputeStepPlan{StoreAs: spec.StoreAs}

	if spec.Handler != "" {
		if err := c.invokeComputeHandler(flowID, s.ID, spec, cp); err != nil {
			return StepPlan{}, err
		}
	} else if spec.Values != nil {
		rendered, err := c.renderDeep(s.ID, spec.Values)
		if err != nil {
			return StepPlan{}, err
		}
		values, _ := rendered.(map[string]any)
		cp.Values = values
		for k, v := range values {
			c.st.Answers[k] = v
		}
	}

	sp.Compute = cp
	c.emit("plan.compute", flowID, s.ID, map[string]any{"storeAs": spec.StoreAs, "handlerInvoked": cp.HandlerInvoked})
	return sp, nil
}

func (c *compiler) invokeComputeHandler(flowID, stepID string, spec *step.ComputeSpec, cp *ComputeStepPlan) error {
	if c.opts.Computes == nil {
		cp.Note = "compute handler unavailable (no registry configured)"
		return nil
	}
	handler, ok := c.opts.Computes.Lookup(spec.Handler)
	if !ok {
		c.warn("flow %q step %q: unknown compute handler %q", flowID, stepID, spec.Handler)
		cp.Note = "unknown compute handler"
		return nil
	}

	params, err := c.renderDeep(stepID, spec.Params)
	if err != nil {
		return err
	}
	renderedParams, _ := params.(map[string]any)

	result, err := handler(context.Background(), renderedParams)
	if err != nil {
		c.warn("flow %q step %q: compute handler %q failed: %s", flowID, stepID, spec.Handler, err)
		cp.Note = "compute handler failed"
		return nil
	}

	cp.HandlerInvoked = true
	cp.Result = result
	if spec.StoreAs != "" {
		c.st.Answers[spec.StoreAs] = result
	} else if obj, ok := result.(map[string]any); ok {
		for k, v := range obj {
			c.st.Answers[k] = v
		}
	}
	return nil
}

// renderDeep recursively renders string leaves of v (maps, slices, scalars)
// through the template renderer; non-string leaves pass through unchanged.
func (c *compiler) renderDeep(stepID string, v any) (any, error) {
	meta := map[string]any{"id": stepID, "kind": "compute"}
	switch t := v.(type) {
	case string:
		return c.render(t, meta, nil)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			rv, err := c.renderDeep(stepID, val)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			rv, err := c.renderDeep(stepID, val)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}
