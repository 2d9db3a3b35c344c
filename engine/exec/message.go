package exec

import "github.com/mathieu007/dev-wizard-engine/engine/step"

func (e *Executor) executeMessage(flowID string, s step.Step) (stepResult, error) {
	spec := s.Message
	rendered, err := e.render(spec.Text, map[string]any{"id": s.ID, "kind": "message"})
	if err != nil {
		return stepResult{}, err
	}

	level := spec.Level
	if level == "" {
		level = step.LevelInfo
	}
	e.note(level, rendered, map[string]any{"flowId": flowID, "stepId": s.ID})

	status := statusSuccess
	if level == step.LevelWarning {
		status = statusWarning
	} else if level == step.LevelError {
		status = statusError
	}
	return stepResult{next: spec.Next, status: status}, nil
}
