package expreval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatorEvalBool(t *testing.T) {
	t.Run("Should evaluate a true boolean condition", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		ok, err := e.EvalBool(`ctx.branch == "main"`, map[string]any{"branch": "main"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should evaluate a false boolean condition", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		ok, err := e.EvalBool(`ctx.count > 10`, map[string]any{"count": 3})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should error when the expression is not boolean", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		_, err = e.EvalBool(`ctx.count`, map[string]any{"count": 3})
		assert.Error(t, err)
	})

	t.Run("Should error on invalid expression syntax", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		_, err = e.EvalBool(`ctx.count ===`, map[string]any{"count": 3})
		assert.Error(t, err)
	})

	t.Run("Should cache a compiled program across calls", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			ok, err := e.EvalBool(`ctx.enabled`, map[string]any{"enabled": true})
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})
}
