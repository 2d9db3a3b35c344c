package exec

import (
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/tmplctx"
)

func (e *Executor) templateContext(stepMetadata map[string]any, iteration *state.Iteration) map[string]any {
	if iteration == nil {
		iteration = e.st.Iteration
	}
	return tmplctx.Build(tmplctx.Params{
		State:        e.st,
		RepoRoot:     e.opts.RepoRoot,
		StepMetadata: stepMetadata,
		Iteration:    iteration,
	})
}

func (e *Executor) render(tmpl string, stepMetadata map[string]any) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	if e.opts.Renderer == nil {
		return tmpl, nil
	}
	return e.opts.Renderer.Render(tmpl, e.templateContext(stepMetadata, nil))
}

func (e *Executor) evaluate(expr string, stepMetadata map[string]any) (any, error) {
	if e.opts.Evaluator == nil {
		return nil, fmt.Errorf("no expression evaluator configured")
	}
	return e.opts.Evaluator.Evaluate(expr, e.templateContext(stepMetadata, nil))
}

// renderDeep recursively renders string leaves of v through the template
// renderer; non-string leaves pass through unchanged. Mirrors the plan
// compiler's compute.go so a deep-rendered params/values tree behaves
// identically whether it was only previewed or actually executed.
func (e *Executor) renderDeep(stepID string, v any) (any, error) {
	meta := map[string]any{"id": stepID}
	switch t := v.(type) {
	case string:
		return e.render(t, meta)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			rv, err := e.renderDeep(stepID, val)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			rv, err := e.renderDeep(stepID, val)
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

// isTruthy decides truthiness for branch/when evaluation results: nil,
// false, zero numbers, "", and empty slices/maps are falsy (unlike JS, where
// empty arrays and objects are truthy); everything else is truthy.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
