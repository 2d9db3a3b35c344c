package plan

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// PluginStepPlan previews a custom (non-builtin) step kind via its
// PluginHandler.Plan, falling back to a bare stub when the handler has no
// registry, is unregistered, or declines to implement preview — planning
// never hard-fails on a runtime-only plugin condition.
type PluginStepPlan struct {
	Type   string         `json:"type"`
	Result map[string]any `json:"result,omitempty"`
	Stub   bool           `json:"stub,omitempty"`
	Note   string         `json:"note,omitempty"`
}

func (c *compiler) compilePlugin(ctx context.Context, flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	pp := &PluginStepPlan{Type: string(s.Type)}

	if c.opts.Plugins == nil {
		pp.Stub = true
		pp.Note = "plugin registry unavailable"
		c.warn("flow %q step %q: plugin type %q has no registry configured", flowID, s.ID, s.Type)
		sp.Plugin = pp
		return sp, nil
	}

	handler, ok := c.opts.Plugins.Lookup(string(s.Type))
	if !ok {
		pp.Stub = true
		pp.Note = "unregistered plugin type"
		c.warn("flow %q step %q: plugin type %q is not registered", flowID, s.ID, s.Type)
		sp.Plugin = pp
		return sp, nil
	}

	ctxMap := c.templateContext(map[string]any{"id": s.ID, "kind": string(s.Type)}, nil)
	result, err := handler.Plan(ctx, &s, ctxMap)
	if err != nil {
		c.warn("flow %q step %q: plugin plan failed: %s", flowID, s.ID, err)
		pp.Stub = true
		pp.Note = "plugin plan failed"
		sp.Plugin = pp
		return sp, nil
	}
	if result == nil {
		pp.Stub = true
		pp.Note = "plugin did not implement plan(); bare stub"
	} else {
		pp.Result = result
	}

	sp.Plugin = pp
	c.emit("plan.plugin", flowID, s.ID, map[string]any{"type": string(s.Type), "stub": pp.Stub})
	return sp, nil
}
