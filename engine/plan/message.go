package plan

import "github.com/mathieu007/dev-wizard-engine/engine/step"

// MessageStepPlan previews a message step's rendered text and severity.
type MessageStepPlan struct {
	Level step.Level `json:"level"`
	Text  string     `json:"text"`
	Next  step.Next  `json:"next,omitempty"`
}

func (c *compiler) compileMessage(flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Message
	if spec == nil {
		return sp, nil
	}
	rendered, err := c.render(spec.Text, map[string]any{"id": s.ID, "kind": "message"}, nil)
	if err != nil {
		return StepPlan{}, err
	}
	level := spec.Level
	if level == "" {
		level = step.LevelInfo
	}
	sp.Message = &MessageStepPlan{Level: level, Text: rendered, Next: spec.Next}
	c.emit("plan.message", flowID, s.ID, map[string]any{"level": string(level)})
	return sp, nil
}
