package plan

import (
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/tmplctx"
)

func (c *compiler) templateContext(stepMetadata map[string]any, iteration *state.Iteration) map[string]any {
	if iteration == nil {
		iteration = c.st.Iteration
	}
	return tmplctx.Build(tmplctx.Params{
		State:        c.st,
		RepoRoot:     c.opts.RepoRoot,
		StepMetadata: stepMetadata,
		Iteration:    iteration,
	})
}
