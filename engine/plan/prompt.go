package plan

import (
	"context"
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// AnswerSource names where a previewed prompt's value came from, per
// spec.md §4.3's priority order: override, persisted, default, pending.
type AnswerSource string

const (
	SourceOverride AnswerSource = "override"
	SourcePersisted AnswerSource = "persisted"
	SourceDefault  AnswerSource = "default"
	SourcePending  AnswerSource = "pending"
)

// PromptStepPlan previews one prompt step's resolved answer (or pending
// status) plus its enumerated options.
type PromptStepPlan struct {
	Mode               step.Mode    `json:"mode"`
	Prompt             string       `json:"prompt"`
	StoreAs            string       `json:"storeAs"`
	Source             AnswerSource `json:"source"`
	Value              any          `json:"value,omitempty"`
	Options            []step.Option `json:"options,omitempty"`
	DynamicPreviewOnly bool         `json:"dynamicPreviewOnly,omitempty"`
}

func (c *compiler) compilePrompt(ctx context.Context, flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Prompt
	if spec == nil {
		return sp, nil
	}
	key := spec.AnswerKey(s.ID)

	rendered, err := c.render(spec.Prompt, map[string]any{"id": s.ID, "kind": "prompt"}, nil)
	if err != nil {
		return StepPlan{}, err
	}

	pp := &PromptStepPlan{Mode: spec.Mode, Prompt: rendered, StoreAs: key}
	c.resolvePromptValue(flowID, s.ID, key, spec, pp)

	opts, dynamicPreview, err := c.enumeratePromptOptions(ctx, flowID, s.ID, spec)
	if err != nil {
		return StepPlan{}, err
	}
	pp.Options = opts
	pp.DynamicPreviewOnly = dynamicPreview

	sp.Prompt = pp
	c.emit("plan.prompt", flowID, s.ID, map[string]any{"source": string(pp.Source), "storeAs": key})
	return sp, nil
}

// resolvePromptValue implements the override → persisted → default →
// pending priority order, recording the outcome into pp and mirroring the
// resolved value into the simulated state's answers so downstream branches
// and templates see it exactly like the executor would.
func (c *compiler) resolvePromptValue(flowID, stepID, key string, spec *step.PromptSpec, pp *PromptStepPlan) {
	if v, ok := c.opts.Overrides[key]; ok {
		c.consumed[key] = true
		pp.Source = SourceOverride
		pp.Value = v
		c.st.Answers[key] = v
		return
	}

	if c.opts.ApplyPersisted && c.opts.Persistence != nil {
		scope := "scenario"
		projectID := ""
		if spec.Persist != nil {
			scope = string(spec.Persist.Scope)
		}
		if scope == "project" {
			if pid, ok := c.st.Answers["projectId"].(string); ok {
				projectID = pid
			}
		}
		if scope != "project" || projectID != "" {
			if v, ok := c.opts.Persistence.Get(scope, key, projectID); ok {
				pp.Source = SourcePersisted
				pp.Value = v
				c.st.Answers[key] = v
				return
			}
		}
	}

	if spec.DefaultValue != nil {
		v := spec.DefaultValue
		if str, ok := v.(string); ok {
			rendered, err := c.render(str, map[string]any{"id": stepID, "kind": "prompt"}, nil)
			if err == nil {
				v = rendered
			}
		}
		pp.Source = SourceDefault
		pp.Value = v
		c.st.Answers[key] = v
		return
	}

	pp.Source = SourcePending
	c.pending++
	c.warn("flow %q step %q: prompt %q has no override, persisted, or default answer", flowID, stepID, key)
}

// enumeratePromptOptions renders static options and resolves dynamic
// providers, except dynamic.command which is preview-only during planning
// (spec.md §4.3) and is returned marked rather than invoked.
func (c *compiler) enumeratePromptOptions(ctx context.Context, flowID, stepID string, spec *step.PromptSpec) ([]step.Option, bool, error) {
	var out []step.Option
	for _, o := range spec.Options {
		rendered := o
		if label, err := c.render(o.Label, map[string]any{"id": stepID, "kind": "prompt"}, nil); err == nil {
			rendered.Label = label
		}
		out = append(out, rendered)
	}

	if spec.Dynamic == nil {
		return out, false, nil
	}
	if spec.Dynamic.Type == "command" {
		return out, true, nil
	}
	if c.opts.PromptRegistry == nil {
		c.warn("flow %q step %q: dynamic options provider %q unavailable (no registry configured)", flowID, stepID, spec.Dynamic.Type)
		return out, false, nil
	}

	dyn, err := c.opts.PromptRegistry.Resolve(ctx, spec.Dynamic)
	if err != nil {
		return nil, false, fmt.Errorf("flow %q step %q: resolving dynamic options: %w", flowID, stepID, err)
	}
	out = append(out, dyn...)
	return out, false, nil
}
