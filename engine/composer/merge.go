package composer

import (
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/flow"
	"github.com/mathieu007/dev-wizard-engine/engine/policy"
	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"gopkg.in/yaml.v3"
)

// decodeInto re-marshals a generic map[string]any (from a parsed document)
// into a typed value via a YAML round-trip, the same indirection the
// teacher's autoload.AutoLoader.loadAndRegisterConfig uses (load as a map
// first, decide the target type, then decode into it). The decode is not
// strict: fields the target type does not declare are ignored.
func decodeInto(raw any, target any) error {
	bytes, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bytes, target)
}

// merger accumulates documents, in load order, into a canonical Config.
type merger struct {
	meta           wizard.Meta
	metaSet        bool
	scenarios      []scenario.Scenario
	scenarioIDs    map[string]bool
	flows          map[string]flow.Flow
	presets        map[string]step.CommandPreset
	presetSources  wizard.PresetSources
	policies       *policy.Policies
	plugins        []wizard.PluginRef
	pluginKeys     map[string]bool
	warnings       []string
	errs           []error
}

func newMerger() *merger {
	return &merger{
		scenarioIDs: make(map[string]bool),
		flows:       make(map[string]flow.Flow),
		presets:     make(map[string]step.CommandPreset),
		presetSources: make(wizard.PresetSources),
		pluginKeys:  make(map[string]bool),
	}
}

func (m *merger) apply(path string, doc *rawDocument) {
	if issues := validateDocument(path, doc); len(issues) > 0 {
		for _, issue := range issues {
			m.errs = append(m.errs, core.NewError(
				fmt.Errorf("%s: %s", issue.Path, issue.Message),
				"CONFIG_SCHEMA_INVALID",
				map[string]any{"filePath": path, "path": issue.Path, "message": issue.Message},
			))
		}
		return
	}
	m.applyMeta(path, doc)
	m.applyScenarios(path, doc)
	m.applyFlows(path, doc)
	m.applyPresets(path, doc)
	m.applyPolicies(doc)
	m.applyPlugins(path, doc)
}

func (m *merger) applyMeta(path string, doc *rawDocument) {
	if doc.Meta == nil {
		return
	}
	var meta wizard.Meta
	if err := decodeInto(doc.Meta, &meta); err != nil {
		m.errs = append(m.errs, core.NewError(err, "CONFIG_SCHEMA_INVALID", map[string]any{"filePath": path, "path": "meta"}))
		return
	}
	if meta.SchemaVersion == 0 {
		meta.SchemaVersion = 1
	} else if meta.SchemaVersion != 1 {
		m.warnings = append(m.warnings, fmt.Sprintf("%s: unsupported meta.schemaVersion %d, only 1 is supported", path, meta.SchemaVersion))
	}
	if !m.metaSet {
		m.meta = meta
		m.metaSet = true
		return
	}
	if meta.Name != "" {
		m.meta.Name = meta.Name
	}
	if meta.Version != "" {
		m.meta.Version = meta.Version
	}
	if meta.Description != "" {
		m.meta.Description = meta.Description
	}
}

func (m *merger) applyScenarios(path string, doc *rawDocument) {
	for i, raw := range doc.Scenarios {
		var sc scenario.Scenario
		if err := decodeInto(raw, &sc); err != nil {
			m.errs = append(m.errs, core.NewError(err, "CONFIG_SCHEMA_INVALID", map[string]any{
				"filePath": path, "path": fmt.Sprintf("scenarios[%d]", i),
			}))
			continue
		}
		if m.scenarioIDs[sc.ID] {
			m.errs = append(m.errs, core.NewError(
				fmt.Errorf("duplicate scenario id %q", sc.ID),
				"CONFIG_DUPLICATE_SCENARIO",
				map[string]any{"filePath": path, "id": sc.ID},
			))
			continue
		}
		m.scenarioIDs[sc.ID] = true
		m.scenarios = append(m.scenarios, sc)
	}
}

func (m *merger) applyFlows(path string, doc *rawDocument) {
	for key, raw := range doc.Flows {
		var f flow.Flow
		if err := decodeInto(raw, &f); err != nil {
			m.errs = append(m.errs, core.NewError(err, "CONFIG_SCHEMA_INVALID", map[string]any{
				"filePath": path, "path": "flows." + key,
			}))
			continue
		}
		if f.ID == "" {
			f.ID = key
		}
		if f.ID != key {
			m.errs = append(m.errs, core.NewError(
				fmt.Errorf("flow key %q does not match its id %q", key, f.ID),
				"CONFIG_FLOW_KEY_MISMATCH",
				map[string]any{"filePath": path, "key": key, "id": f.ID},
			))
			continue
		}
		if _, exists := m.flows[key]; exists {
			m.errs = append(m.errs, core.NewError(
				fmt.Errorf("duplicate flow id %q", key),
				"CONFIG_DUPLICATE_FLOW",
				map[string]any{"filePath": path, "id": key},
			))
			continue
		}
		if err := f.Validate(); err != nil {
			m.errs = append(m.errs, err)
			continue
		}
		m.flows[key] = f
	}
}

func (m *merger) applyPresets(path string, doc *rawDocument) {
	for name, raw := range doc.CommandPresets {
		var preset step.CommandPreset
		if err := decodeInto(raw, &preset); err != nil {
			m.errs = append(m.errs, core.NewError(err, "CONFIG_SCHEMA_INVALID", map[string]any{
				"filePath": path, "path": "commandPresets." + name,
			}))
			continue
		}
		existing, exists := m.presets[name]
		if !exists {
			m.presets[name] = preset
			m.presetSources[name] = append(m.presetSources[name], path)
			continue
		}
		m.presetSources[name] = append(m.presetSources[name], path)
		if presetsEqual(existing, preset) {
			m.warnings = append(m.warnings, fmt.Sprintf(
				"commandPreset %q redefined identically in: %v", name, m.presetSources[name],
			))
			continue
		}
		m.errs = append(m.errs, core.NewError(
			fmt.Errorf("conflicting redefinition of commandPreset %q", name),
			"CONFIG_PRESET_CONFLICT",
			map[string]any{"preset": name, "sources": m.presetSources[name]},
		))
	}
}

func presetsEqual(a, b step.CommandPreset) bool {
	ab, errA := yaml.Marshal(a)
	bb, errB := yaml.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

func (m *merger) applyPolicies(doc *rawDocument) {
	if doc.Policies == nil {
		return
	}
	var p policy.Policies
	if err := decodeInto(doc.Policies, &p); err != nil {
		m.errs = append(m.errs, core.NewError(err, "CONFIG_SCHEMA_INVALID", map[string]any{"path": "policies"}))
		return
	}
	if m.policies == nil {
		m.policies = &p
		return
	}
	m.policies.Rules = append(m.policies.Rules, p.Rules...)
	if p.DefaultLevel != "" {
		m.policies.DefaultLevel = p.DefaultLevel
	}
}

func (m *merger) applyPlugins(path string, doc *rawDocument) {
	for _, raw := range doc.Plugins {
		var ref wizard.PluginRef
		if err := decodeInto(raw, &ref); err != nil {
			m.errs = append(m.errs, core.NewError(err, "CONFIG_SCHEMA_INVALID", map[string]any{"filePath": path, "path": "plugins"}))
			continue
		}
		ref.Source = path
		key := ref.ResolvedPath
		if key == "" {
			key = ref.Module
		}
		if m.pluginKeys[key] {
			m.warnings = append(m.warnings, fmt.Sprintf("plugin %q registered more than once, first registration wins", key))
			continue
		}
		m.pluginKeys[key] = true
		m.plugins = append(m.plugins, ref)
	}
}

func (m *merger) build() (*wizard.Config, []string, []error) {
	cfg := &wizard.Config{
		Meta:           m.meta,
		Scenarios:      m.scenarios,
		Flows:          m.flows,
		CommandPresets: m.presets,
		PresetSources:  m.presetSources,
		Policies:       m.policies,
		Plugins:        m.plugins,
	}
	return cfg, m.warnings, m.errs
}
