package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererRender(t *testing.T) {
	t.Run("Should substitute a simple field", func(t *testing.T) {
		r := NewRenderer()
		out, err := r.Render("hello {{name}}", map[string]any{"name": "world"})
		require.NoError(t, err)
		assert.Equal(t, "hello world", out)
	})

	t.Run("Should reuse a cached compiled template", func(t *testing.T) {
		r := NewRenderer()
		tmpl := "value: {{value}}"
		_, err := r.Render(tmpl, map[string]any{"value": 1})
		require.NoError(t, err)
		out, err := r.Render(tmpl, map[string]any{"value": 2})
		require.NoError(t, err)
		assert.Equal(t, "value: 2", out)
	})

	t.Run("Should error on malformed template syntax", func(t *testing.T) {
		r := NewRenderer()
		_, err := r.Render("{{#if}}", map[string]any{})
		assert.Error(t, err)
	})
}
