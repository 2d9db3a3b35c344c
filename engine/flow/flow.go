// Package flow holds Flow, an ordered list of steps executed as a unit.
package flow

import (
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// Flow is an ordered, non-empty list of steps. The key under which a Flow
// is stored in Config.Flows must equal its ID (enforced at composer merge
// time, not here).
type Flow struct {
	ID          string      `json:"id"                    yaml:"id"`
	Label       string      `json:"label,omitempty"       yaml:"label,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []step.Step `json:"steps"                 yaml:"steps"`
}

// Validate enforces unique step ids within the flow and a non-empty step
// list; it does not resolve cross-flow references (that is the composer's
// lint pass, since it needs the full Config to check targets).
func (f *Flow) Validate() error {
	if len(f.Steps) == 0 {
		return core.NewError(fmt.Errorf("flow %q has no steps", f.ID), "FLOW_EMPTY", map[string]any{"flow": f.ID})
	}
	seen := make(map[string]bool, len(f.Steps))
	for _, s := range f.Steps {
		if s.ID == "" {
			return core.NewError(fmt.Errorf("flow %q has a step with no id", f.ID), "STEP_ID_MISSING", map[string]any{"flow": f.ID})
		}
		if seen[s.ID] {
			return core.NewError(
				fmt.Errorf("duplicate step id %q in flow %q", s.ID, f.ID),
				"STEP_ID_DUPLICATE",
				map[string]any{"flow": f.ID, "step": s.ID},
			)
		}
		seen[s.ID] = true
	}
	return nil
}

// IndexOf returns the position of stepID within Steps, or -1.
func (f *Flow) IndexOf(stepID string) int {
	for i, s := range f.Steps {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}

// HasStep reports whether stepID names a step in this flow.
func (f *Flow) HasStep(stepID string) bool {
	return f.IndexOf(stepID) >= 0
}
