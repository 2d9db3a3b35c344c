package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindIsBuiltin(t *testing.T) {
	t.Run("Should recognize every builtin kind", func(t *testing.T) {
		for _, k := range []Kind{
			KindPrompt, KindCommand, KindMessage, KindBranch,
			KindGroup, KindIterate, KindCompute, KindGitWorktreeGuard,
		} {
			assert.True(t, k.IsBuiltin(), "expected %s to be builtin", k)
		}
	})

	t.Run("Should route unknown types to the plugin registry", func(t *testing.T) {
		assert.False(t, Kind("notify-slack").IsBuiltin())
	})
}

func TestWorkflowMetadata(t *testing.T) {
	t.Run("Should parse a well formed workflow metadata object", func(t *testing.T) {
		s := &Step{Metadata: map[string]any{
			"workflow": map[string]any{"id": "release", "label": "Release", "includeInAll": true},
		}}
		wf, ok := s.WorkflowMetadata()
		assert.True(t, ok)
		assert.Equal(t, "release", wf.ID)
		assert.True(t, wf.IncludeInAll)
	})

	t.Run("Should return false when metadata has no workflow entry", func(t *testing.T) {
		s := &Step{Metadata: map[string]any{}}
		_, ok := s.WorkflowMetadata()
		assert.False(t, ok)
	})

	t.Run("Should return false when the workflow object lacks an id", func(t *testing.T) {
		s := &Step{Metadata: map[string]any{"workflow": map[string]any{"label": "no id"}}}
		_, ok := s.WorkflowMetadata()
		assert.False(t, ok)
	})
}

func TestGuardSpecAnyStrategyEnabled(t *testing.T) {
	t.Run("Should be false when no strategy is enabled", func(t *testing.T) {
		assert.False(t, GuardSpec{}.AnyStrategyEnabled())
	})

	t.Run("Should be true when at least one strategy is enabled", func(t *testing.T) {
		assert.True(t, GuardSpec{AllowStash: true}.AnyStrategyEnabled())
	})
}

func TestPromptSpecAnswerKey(t *testing.T) {
	t.Run("Should prefer storeAs over the step id", func(t *testing.T) {
		p := &PromptSpec{StoreAs: "name"}
		assert.Equal(t, "name", p.AnswerKey("step-1"))
	})

	t.Run("Should fall back to the step id", func(t *testing.T) {
		p := &PromptSpec{}
		assert.Equal(t, "step-1", p.AnswerKey("step-1"))
	})
}
