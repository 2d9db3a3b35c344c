package exec

import (
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

type branchDecisionEvent struct {
	wizard.Event
	Next string `json:"next"`
}

func (e *Executor) executeBranch(flowID string, s step.Step) (stepResult, error) {
	spec := s.Branch
	next := spec.DefaultNext

	for _, clause := range spec.Branches {
		v, err := e.evaluate(clause.When, map[string]any{"id": s.ID, "kind": "branch"})
		if err != nil {
			e.note(step.LevelWarning, "branch clause failed to evaluate, skipping", map[string]any{
				"flowId": flowID, "stepId": s.ID, "when": clause.When, "error": err.Error(),
			})
			continue
		}
		if isTruthy(v) {
			next = clause.Next
			break
		}
	}

	e.emit(branchDecisionEvent{Event: telemetry.NewEvent(telemetry.TypeBranchDecision, flowID, s.ID), Next: string(next)})
	return stepResult{next: next, status: statusSuccess}, nil
}
