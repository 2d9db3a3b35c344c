// Package template provides the default Handlebars-style TemplateRenderer
// (engine/wizard.TemplateRenderer) backing message and prompt interpolation,
// built on github.com/mbleigh/raymond the way the teacher's template layer
// builds on its own handlebars engine.
package template

import (
	"fmt"
	"sync"

	"github.com/mbleigh/raymond"
)

// Renderer renders Handlebars templates against a context map, caching
// parsed templates by source string since the same message/prompt text is
// typically rendered on every flow iteration.
type Renderer struct {
	mu    sync.Mutex
	cache map[string]*raymond.Template
}

func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]*raymond.Template)}
}

// Render compiles (or reuses a cached compile of) tmpl and evaluates it
// against data.
func (r *Renderer) Render(tmpl string, data map[string]any) (string, error) {
	t, err := r.parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template parse failed: %w", err)
	}
	out, err := t.Exec(data)
	if err != nil {
		return "", fmt.Errorf("template exec failed: %w", err)
	}
	return out, nil
}

func (r *Renderer) parse(tmpl string) (*raymond.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[tmpl]; ok {
		return t, nil
	}
	t, err := raymond.Parse(tmpl)
	if err != nil {
		return nil, err
	}
	r.cache[tmpl] = t
	return t, nil
}
