package tmplctx

import (
	"testing"

	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("Should project state, step metadata, env and repoRoot", func(t *testing.T) {
		sc := &scenario.Scenario{ID: "main", Flow: "f1"}
		st := state.New(sc, "run-1")
		st.Answers["name"] = "world"

		ctx := Build(Params{State: st, RepoRoot: "/repo", StepMetadata: map[string]any{"id": "s1"}})

		stateCtx, ok := ctx["state"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, st.Answers, stateCtx["answers"])
		assert.Equal(t, "/repo", stateCtx["repoRoot"])
		assert.Equal(t, "/repo", ctx["repoRoot"])
		assert.Equal(t, map[string]any{"id": "s1"}, ctx["step"])
		assert.NotNil(t, ctx["env"])
		assert.Nil(t, ctx["iteration"])
	})

	t.Run("Should include iteration and identity when present", func(t *testing.T) {
		sc := &scenario.Scenario{ID: "main", Flow: "f1"}
		st := state.New(sc, "run-1")
		st.Identity = &scenario.Identity{Slug: "alpha"}
		iter := &state.Iteration{Index: 0, Total: 3, Value: "a"}

		ctx := Build(Params{State: st, RepoRoot: "/repo", Iteration: iter})

		assert.Equal(t, iter, ctx["iteration"])
		stateCtx := ctx["state"].(map[string]any)
		assert.Equal(t, st.Identity, stateCtx["identity"])
	})
}
