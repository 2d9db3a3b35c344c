package exec

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

type promptAnswerEvent struct {
	wizard.Event
	StoreAs string `json:"storeAs"`
	Source  string `json:"source"`
}

func (e *Executor) executePrompt(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	spec := s.Prompt
	key := spec.AnswerKey(s.ID)

	value, source, err := e.resolvePromptAnswer(ctx, flowID, s, spec, key)
	if err != nil {
		return stepResult{}, err
	}

	if spec.Mode == step.ModeMultiselect {
		if str, ok := value.(string); ok {
			var arr []any
			if json.Unmarshal([]byte(str), &arr) == nil {
				value = arr
			}
		}
	}

	if err := validatePromptAnswer(spec, value); err != nil {
		return stepResult{}, core.NewError(err, "PROMPT_VALIDATION_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
	}

	e.st.Answers[key] = value
	if err := e.persistPromptAnswer(spec, key, value); err != nil {
		return stepResult{}, err
	}

	e.emit(promptAnswerEvent{Event: telemetry.NewEvent(telemetry.TypePromptAnswer, flowID, s.ID), StoreAs: key, Source: source})
	return stepResult{next: step.NextUndefined, status: statusSuccess}, nil
}

// resolvePromptAnswer implements the override → persisted → default →
// interactive priority order.
func (e *Executor) resolvePromptAnswer(ctx context.Context, flowID string, s step.Step, spec *step.PromptSpec, key string) (any, string, error) {
	if v, ok := e.opts.Overrides[key]; ok {
		return v, "override", nil
	}

	if e.opts.ApplyPersisted && e.opts.Persistence != nil {
		scope, projectID := e.promptPersistScope(spec)
		if scope != "project" || projectID != "" {
			if v, ok := e.opts.Persistence.Get(scope, key, projectID); ok {
				return v, "persisted", nil
			}
		}
	}

	if spec.DefaultValue != nil {
		v := spec.DefaultValue
		if str, ok := v.(string); ok {
			rendered, err := e.render(str, map[string]any{"id": s.ID, "kind": "prompt"})
			if err == nil {
				v = rendered
			}
		}
		if !e.opts.Interactive || e.opts.PromptDriver == nil {
			return v, "default", nil
		}
	}

	if !e.opts.Interactive || e.opts.PromptDriver == nil {
		return nil, "", core.NewError(nil, "PROMPT_ANSWER_REQUIRED", map[string]any{"flowId": flowID, "stepId": s.ID, "storeAs": key})
	}

	rendered, err := e.render(spec.Prompt, map[string]any{"id": s.ID, "kind": "prompt"})
	if err != nil {
		return nil, "", err
	}
	options, err := e.enumeratePromptOptions(ctx, flowID, s.ID, spec)
	if err != nil {
		return nil, "", err
	}
	answer, err := e.opts.PromptDriver.Ask(ctx, wizard.PromptRequest{
		StepID:             s.ID,
		Mode:                spec.Mode,
		Prompt:              rendered,
		Options:             options,
		DefaultValue:        spec.DefaultValue,
		Required:            spec.Required,
		ShowSelectionOrder:  spec.ShowSelectionOrder,
	})
	if err != nil {
		return nil, "", core.NewError(err, "PROMPT_ASK_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
	}
	return answer, "interactive", nil
}

func (e *Executor) promptPersistScope(spec *step.PromptSpec) (string, string) {
	scope := "scenario"
	projectID := ""
	if spec.Persist != nil {
		scope = string(spec.Persist.Scope)
	}
	if scope == "project" {
		if pid, ok := e.st.Answers["projectId"].(string); ok {
			projectID = pid
		}
	}
	return scope, projectID
}

func (e *Executor) persistPromptAnswer(spec *step.PromptSpec, key string, value any) error {
	if spec.Persist == nil || e.opts.Persistence == nil {
		return nil
	}
	scope, projectID := e.promptPersistScope(spec)
	if scope == "project" && projectID == "" {
		return nil
	}
	if err := e.opts.Persistence.Set(scope, key, projectID, value); err != nil {
		return core.NewError(err, "PERSISTENCE_SET_FAILED", map[string]any{"storeAs": key})
	}
	return nil
}

func (e *Executor) enumeratePromptOptions(ctx context.Context, flowID, stepID string, spec *step.PromptSpec) ([]step.Option, error) {
	out := make([]step.Option, 0, len(spec.Options))
	for _, o := range spec.Options {
		rendered := o
		if label, err := e.render(o.Label, map[string]any{"id": stepID, "kind": "prompt"}); err == nil {
			rendered.Label = label
		}
		out = append(out, rendered)
	}
	if spec.Dynamic == nil {
		return out, nil
	}
	if e.opts.PromptRegistry == nil {
		return out, core.NewError(nil, "PROMPT_PROVIDER_UNAVAILABLE", map[string]any{"flowId": flowID, "stepId": stepID, "type": spec.Dynamic.Type})
	}
	dyn, err := e.opts.PromptRegistry.Resolve(ctx, spec.Dynamic)
	if err != nil {
		return nil, core.NewError(err, "PROMPT_PROVIDER_FAILED", map[string]any{"flowId": flowID, "stepId": stepID, "type": spec.Dynamic.Type})
	}
	return append(out, dyn...), nil
}

func validatePromptAnswer(spec *step.PromptSpec, value any) error {
	if spec.Required && isZeroAnswer(value) {
		return core.NewError(nil, "PROMPT_REQUIRED", map[string]any{"storeAs": spec.StoreAs})
	}
	if spec.Validation == nil {
		return nil
	}
	str, isStr := value.(string)
	if !isStr {
		return nil
	}
	if spec.Validation.MinLength > 0 && len(str) < spec.Validation.MinLength {
		return core.NewError(nil, "PROMPT_TOO_SHORT", map[string]any{"minLength": spec.Validation.MinLength})
	}
	if spec.Validation.MaxLength > 0 && len(str) > spec.Validation.MaxLength {
		return core.NewError(nil, "PROMPT_TOO_LONG", map[string]any{"maxLength": spec.Validation.MaxLength})
	}
	if spec.Validation.Regex != "" {
		re, err := regexp.Compile(spec.Validation.Regex)
		if err != nil {
			return core.NewError(err, "PROMPT_REGEX_INVALID", map[string]any{"regex": spec.Validation.Regex})
		}
		if !re.MatchString(str) {
			return core.NewError(nil, "PROMPT_REGEX_MISMATCH", map[string]any{"regex": spec.Validation.Regex})
		}
	}
	return nil
}

func isZeroAnswer(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
