// Package prompt implements the dynamic prompt-option providers of
// spec.md §4.5: command, glob, json, workspace-projects, and
// project-tsconfigs. Each provider resolves to a normalized []step.Option
// list, optionally rewritten through a step.OptionMapping. Grounded on
// the teacher's discoverer/composer file-walk idioms
// (engine/composer/discoverer.go) for the filesystem-backed providers,
// and on engine/runner.ShellRunner for the command provider.
package prompt

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/tidwall/gjson"
)

// Provider resolves one dynamic option source to a list of raw records,
// each carrying at least "value" and "label" keys under the provider's
// own default normalization; a step.OptionMapping may rewrite these
// further.
type Provider interface {
	Resolve(ctx context.Context, cfg map[string]any) ([]map[string]any, error)
}

var defaultMapping = &step.OptionMapping{Value: "value", Label: "label", Hint: "hint", DisableWhen: "disabled"}

// Registry dispatches DynamicOptions.Type to a concrete Provider.
type Registry struct {
	repoRoot  string
	runner    wizard.CommandRunner
	cache     *Cache
	providers map[string]Provider
}

// NewRegistry wires the five builtin providers named in spec.md §4.5.
// runner may be nil if the "command" provider is never exercised (e.g.
// plan-compiler preview mode, which marks it preview-only instead).
func NewRegistry(repoRoot string, runner wizard.CommandRunner) *Registry {
	r := &Registry{repoRoot: repoRoot, runner: runner, cache: NewCache()}
	r.providers = map[string]Provider{
		"command":            &commandProvider{repoRoot: repoRoot, runner: runner},
		"glob":               &globProvider{repoRoot: repoRoot},
		"json":               &jsonProvider{repoRoot: repoRoot},
		"workspace-projects": &workspaceProjectsProvider{repoRoot: repoRoot},
		"project-tsconfigs":  &projectTsconfigsProvider{repoRoot: repoRoot},
	}
	return r
}

// Resolve dispatches a DynamicOptions directive to its provider, honoring
// its cache directive, and applies the optional field mapping.
func (r *Registry) Resolve(ctx context.Context, dyn *step.DynamicOptions) ([]step.Option, error) {
	p, ok := r.providers[dyn.Type]
	if !ok {
		return nil, core.NewError(nil, "PROMPT_PROVIDER_UNKNOWN", map[string]any{"type": dyn.Type})
	}
	mapping := dyn.Mapping
	if mapping == nil {
		mapping = defaultMapping
	}
	return r.cache.Resolve(ctx, r.repoRoot, dyn, func() ([]step.Option, error) {
		raw, err := p.Resolve(ctx, dyn.Config)
		if err != nil {
			return nil, core.NewError(err, "PROMPT_PROVIDER_FAILED", map[string]any{"type": dyn.Type})
		}
		return applyMapping(raw, mapping), nil
	})
}

// applyMapping rewrites a slice of raw provider records (maps) into
// step.Option via m's path expressions. Path expressions are dotted field
// accessors into the record, resolved with gjson-compatible semantics.
func applyMapping(records []map[string]any, m *step.OptionMapping) []step.Option {
	out := make([]step.Option, 0, len(records))
	for _, rec := range records {
		data, _ := json.Marshal(rec)
		opt := step.Option{
			Value: gjson.GetBytes(data, m.Value).Value(),
			Label: gjson.GetBytes(data, m.Label).String(),
		}
		if m.Hint != "" {
			opt.Hint = gjson.GetBytes(data, m.Hint).String()
		}
		if m.DisableWhen != "" {
			opt.Disabled = gjson.GetBytes(data, m.DisableWhen).Bool()
		}
		out = append(out, opt)
	}
	return out
}

func stringConfig(cfg map[string]any, key string) string {
	v, _ := cfg[key].(string)
	return v
}

func intConfig(cfg map[string]any, key, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func boolConfig(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

func resolveUnderRoot(repoRoot, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(repoRoot, rel)
}
