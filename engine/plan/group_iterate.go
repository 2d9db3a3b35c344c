package plan

import (
	"context"
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// GroupStepPlan previews a group step's nested flow.
type GroupStepPlan struct {
	Flow *FlowPlan `json:"flow,omitempty"`
}

func (c *compiler) compileGroup(ctx context.Context, flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Group
	if spec == nil {
		return sp, nil
	}
	if c.groupDepth >= maxGroupDepth {
		c.warn("flow %q step %q: group nesting exceeds %d, not previewing %q further", flowID, s.ID, maxGroupDepth, spec.Flow)
		sp.Group = &GroupStepPlan{}
		return sp, nil
	}

	c.groupDepth++
	fp, err := c.compileFlow(ctx, spec.Flow)
	c.groupDepth--
	if err != nil {
		return StepPlan{}, err
	}

	sp.Group = &GroupStepPlan{Flow: &fp}
	c.emit("plan.group", flowID, s.ID, map[string]any{"flow": spec.Flow})
	return sp, nil
}

// IterateStepPlan previews an iterate step's resolved item count (when
// knowable) and its nested flow structure.
type IterateStepPlan struct {
	Count       int       `json:"count"`
	CountKnown  bool      `json:"countKnown"`
	Note        string    `json:"note,omitempty"`
	StoreEachAs string    `json:"storeEachAs,omitempty"`
	Flow        *FlowPlan `json:"flow,omitempty"`
}

func (c *compiler) compileIterate(ctx context.Context, flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Iterate
	if spec == nil {
		return sp, nil
	}

	count, known, note, err := c.resolveIterateCount(ctx, flowID, s.ID, spec)
	if err != nil {
		return StepPlan{}, err
	}
	if spec.Concurrency > 1 {
		c.warn("flow %q step %q: iterate declares concurrency %d but runs sequentially", flowID, s.ID, spec.Concurrency)
	}

	ip := &IterateStepPlan{Count: count, CountKnown: known, Note: note, StoreEachAs: spec.StoreEachAs}
	if spec.Flow != "" && c.groupDepth < maxGroupDepth {
		c.groupDepth++
		fp, ferr := c.compileFlow(ctx, spec.Flow)
		c.groupDepth--
		if ferr != nil {
			return StepPlan{}, ferr
		}
		ip.Flow = &fp
	}

	sp.Iterate = ip
	c.emit("plan.iterate", flowID, s.ID, map[string]any{"count": count, "countKnown": known})
	return sp, nil
}

// resolveIterateCount implements spec.md §4.3's iterate counting rules:
// static items, answers.key, json{path,pointer} via the dynamic-options
// provider, or a dynamic provider surfacing only metadata — marking the
// count unknown (with a note) whenever it cannot be determined without
// running a command.
func (c *compiler) resolveIterateCount(ctx context.Context, flowID, stepID string, spec *step.IterateSpec) (int, bool, string, error) {
	if spec.Source == nil || spec.Source.From == "" || spec.Source.From == "array" {
		return len(spec.Items), true, "", nil
	}

	switch spec.Source.From {
	case "answers":
		v, ok := c.st.Answers[spec.Source.AnswersKey]
		if !ok {
			return 0, false, fmt.Sprintf("answers key %q not yet resolved", spec.Source.AnswersKey), nil
		}
		n, ok := collectionLen(v)
		if !ok {
			return 0, false, fmt.Sprintf("answers key %q is not a collection", spec.Source.AnswersKey), nil
		}
		return n, true, "", nil

	case "json":
		if spec.Source.JSON == nil {
			return 0, false, "json iterate source missing path/pointer", nil
		}
		return c.resolveProviderCount(ctx, flowID, stepID, "json", map[string]any{
			"path":    spec.Source.JSON.Path,
			"pointer": spec.Source.JSON.Pointer,
		})

	case "dynamic":
		if spec.Source.Dynamic == nil {
			return 0, false, "dynamic iterate source missing a provider type", nil
		}
		if spec.Source.Dynamic.Type == "command" {
			return 0, false, "dynamic.command iterate source is preview-only; count unknown during planning", nil
		}
		return c.resolveProviderCount(ctx, flowID, stepID, spec.Source.Dynamic.Type, spec.Source.Dynamic.Config)

	default:
		return 0, false, fmt.Sprintf("unrecognized iterate source %q", spec.Source.From), nil
	}
}

func (c *compiler) resolveProviderCount(ctx context.Context, flowID, stepID, providerType string, cfg map[string]any) (int, bool, string, error) {
	if c.opts.PromptRegistry == nil {
		return 0, false, fmt.Sprintf("provider %q unavailable (no registry configured)", providerType), nil
	}
	opts, err := c.opts.PromptRegistry.Resolve(ctx, &step.DynamicOptions{Type: providerType, Config: cfg})
	if err != nil {
		c.warn("flow %q step %q: resolving iterate source %q: %s", flowID, stepID, providerType, err)
		return 0, false, fmt.Sprintf("provider %q failed to resolve", providerType), nil
	}
	return len(opts), true, "", nil
}

func collectionLen(v any) (int, bool) {
	switch t := v.(type) {
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	case string:
		return len(t), true
	default:
		return 0, false
	}
}
