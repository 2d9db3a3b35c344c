// Package wizard holds the canonical Config document (spec.md §3) and the
// narrow collaborator interfaces the core consumes. The end-to-end facade a
// consumer actually drives (LoadConfig/Describe/PlanScenario/ExecuteScenario)
// lives one level up in sdk/wizard, since composer/plan/exec all import this
// package and a facade living here would close an import cycle back onto
// itself.
package wizard

import (
	"github.com/mathieu007/dev-wizard-engine/engine/flow"
	"github.com/mathieu007/dev-wizard-engine/engine/policy"
	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// Meta is a Config's {name, version, description?, schemaVersion} block.
// SchemaVersion defaults to 1 when absent from the source document.
type Meta struct {
	Name          string `json:"name"                    yaml:"name"`
	Version       string `json:"version"                 yaml:"version"`
	Description   string `json:"description,omitempty"   yaml:"description,omitempty"`
	SchemaVersion int    `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
}

// PluginRef names a plugin module providing custom step/provider handlers.
type PluginRef struct {
	Module       string         `json:"module"                 yaml:"module"`
	ResolvedPath string         `json:"resolvedPath,omitempty" yaml:"resolvedPath,omitempty"`
	Options      map[string]any `json:"options,omitempty"      yaml:"options,omitempty"`
	Source       string         `json:"source"                 yaml:"source"`
}

// PresetSources maps a command preset name to the ordered set of file paths
// that defined it, maintained by the composer as a side-table alongside
// Config.
type PresetSources map[string][]string

// Config is the composer's canonical, immutable-after-composition output.
type Config struct {
	Meta           Meta                          `json:"meta"`
	Scenarios      []scenario.Scenario           `json:"scenarios"`
	Flows          map[string]flow.Flow          `json:"flows"`
	CommandPresets map[string]step.CommandPreset `json:"commandPresets"`
	PresetSources  PresetSources                 `json:"presetSources"`
	Policies       *policy.Policies              `json:"policies,omitempty"`
	Plugins        []PluginRef                   `json:"plugins,omitempty"`
}

// FindScenario returns the scenario with the given id, or false.
func (c *Config) FindScenario(id string) (*scenario.Scenario, bool) {
	for i := range c.Scenarios {
		if c.Scenarios[i].ID == id {
			return &c.Scenarios[i], true
		}
	}
	return nil, false
}

// FindFlow returns the flow with the given id, or false.
func (c *Config) FindFlow(id string) (*flow.Flow, bool) {
	f, ok := c.Flows[id]
	if !ok {
		return nil, false
	}
	return &f, true
}

// ResolvePreset returns the named preset along with its provenance, per the
// "shallow-frozen with copied env and tags" contract in spec.md §4.2.
func (c *Config) ResolvePreset(name string) (step.CommandPreset, []string, bool) {
	preset, ok := c.CommandPresets[name]
	if !ok {
		return step.CommandPreset{}, nil, false
	}
	return preset.Clone(), c.PresetSources[name], true
}

// ScenarioSummary is one Config scenario's human-facing description.
type ScenarioSummary struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	FlowCount   int      `json:"flowCount"`
}

// Description is a read-only, display-oriented summary of a composed
// Config, the shape a listing UI or `--describe`-style output renders
// directly without walking Config itself.
type Description struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Description   string            `json:"description,omitempty"`
	Scenarios     []ScenarioSummary `json:"scenarios"`
	FlowCount     int               `json:"flowCount"`
	PresetCount   int               `json:"presetCount"`
	PolicyCount   int               `json:"policyCount"`
	PluginModules []string          `json:"pluginModules,omitempty"`
}

// Describe builds a Description from a composed Config.
func Describe(cfg *Config) *Description {
	d := &Description{
		Name:        cfg.Meta.Name,
		Version:     cfg.Meta.Version,
		Description: cfg.Meta.Description,
		FlowCount:   len(cfg.Flows),
		PresetCount: len(cfg.CommandPresets),
	}
	if cfg.Policies != nil {
		d.PolicyCount = len(cfg.Policies.Rules)
	}
	for _, sc := range cfg.Scenarios {
		d.Scenarios = append(d.Scenarios, ScenarioSummary{
			ID:          sc.ID,
			Label:       sc.Label,
			Description: sc.Description,
			Tags:        sc.Tags,
			FlowCount:   len(sc.FlowSequence()),
		})
	}
	for _, p := range cfg.Plugins {
		d.PluginModules = append(d.PluginModules, p.Module)
	}
	return d
}
