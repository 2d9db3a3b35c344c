package exec

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// executePlugin dispatches a non-builtin step kind to its registered
// wizard.PluginHandler. Unlike the plan compiler (which stubs rather than
// fails), a missing registry or unregistered type is fatal here: there is
// no side-effect-free fallback for a step execution has to actually perform.
func (e *Executor) executePlugin(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	if e.opts.Plugins == nil {
		return stepResult{}, core.NewError(nil, "PLUGIN_REGISTRY_UNAVAILABLE", map[string]any{"flowId": flowID, "stepId": s.ID, "type": string(s.Type)})
	}
	handler, ok := e.opts.Plugins.Lookup(string(s.Type))
	if !ok {
		return stepResult{}, core.NewError(nil, "PLUGIN_TYPE_UNKNOWN", map[string]any{"flowId": flowID, "stepId": s.ID, "type": string(s.Type)})
	}

	ctxMap := e.templateContext(map[string]any{"id": s.ID, "kind": string(s.Type)}, nil)
	result, err := handler.Run(ctx, &s, ctxMap)
	if err != nil {
		return stepResult{}, core.NewError(err, "PLUGIN_RUN_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID, "type": string(s.Type)})
	}

	status := result.Status
	if status == "" {
		status = statusSuccess
	}
	return stepResult{next: result.Next, status: status}, nil
}
