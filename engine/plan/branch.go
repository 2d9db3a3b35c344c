package plan

import "github.com/mathieu007/dev-wizard-engine/engine/step"

// BranchClausePlan previews one evaluated branch clause.
type BranchClausePlan struct {
	When        string    `json:"when"`
	Next        step.Next `json:"next"`
	Description string    `json:"description,omitempty"`
	Truthy      bool      `json:"truthy"`
}

// BranchStepPlan previews every clause plus the clause (or default) chosen.
type BranchStepPlan struct {
	Clauses  []BranchClausePlan `json:"clauses"`
	Selected step.Next          `json:"selected"`
	Default  bool               `json:"default"`
}

func (c *compiler) compileBranch(flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Branch
	if spec == nil {
		return sp, nil
	}
	bp := &BranchStepPlan{}
	chosen := false

	for _, clause := range spec.Branches {
		truthy := false
		if !chosen {
			v, err := c.evaluate(clause.When, map[string]any{"id": s.ID, "kind": "branch"})
			if err == nil && isTruthy(v) {
				truthy = true
			}
		}
		bp.Clauses = append(bp.Clauses, BranchClausePlan{
			When:        clause.When,
			Next:        clause.Next,
			Description: clause.Description,
			Truthy:      truthy,
		})
		if truthy && !chosen {
			bp.Selected = clause.Next
			chosen = true
		}
	}

	if !chosen {
		bp.Default = true
		bp.Selected = spec.DefaultNext
		if spec.DefaultNext == step.NextUndefined {
			c.warn("flow %q step %q: no branch clause matched and no defaultNext is set", flowID, s.ID)
		}
	}

	sp.Branch = bp
	c.emit("plan.branch", flowID, s.ID, map[string]any{"selected": string(bp.Selected), "default": bp.Default})
	return sp, nil
}

// isTruthy decides truthiness for branch/when evaluation results: false,
// nil, 0, "", and empty collections are falsy (unlike JS, where empty arrays
// and objects are truthy).
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
