package plan

import (
	"context"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// CommandDescriptorPlan previews one resolved, template-rendered descriptor
// of a command step, including the env merge's provenance (spec.md §4.3:
// "merge preset env ⊕ step.defaults env ⊕ command env ... envDiff records
// key/value/previous/source").
type CommandDescriptorPlan struct {
	Preset      string              `json:"preset,omitempty"`
	Run         string              `json:"run"`
	RenderedRun string              `json:"renderedRun,omitempty"`
	CWD         string              `json:"cwd,omitempty"`
	Shell       bool                `json:"shell"`
	TimeoutMs   int                 `json:"timeoutMs,omitempty"`
	Env         core.EnvMap         `json:"env,omitempty"`
	EnvDiff     []core.EnvDiffEntry `json:"envDiff,omitempty"`
}

// CommandStepPlan previews every descriptor of a command step in order.
type CommandStepPlan struct {
	Summary  string                  `json:"summary,omitempty"`
	Commands []CommandDescriptorPlan `json:"commands"`
}

func (c *compiler) compileCommand(_ context.Context, flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Command
	if spec == nil {
		return sp, nil
	}
	cp := &CommandStepPlan{Summary: spec.Summary}

	for _, desc := range spec.Commands {
		dp, rendered, err := c.compileCommandDescriptor(flowID, s, desc, spec)
		if err != nil {
			return StepPlan{}, err
		}
		cp.Commands = append(cp.Commands, dp)
		c.emit("plan.command", flowID, s.ID, map[string]any{"run": dp.Run, "preset": dp.Preset})
		c.recordSyntheticHistory(flowID, s.ID, rendered)
	}
	sp.Command = cp
	return sp, nil
}

// compileCommandDescriptor resolves desc's preset/defaults/command env
// layers and renders its run string against the projected context.
func (c *compiler) compileCommandDescriptor(flowID string, s step.Step, desc step.CommandDescriptor, spec *step.CommandSpec) (CommandDescriptorPlan, string, error) {
	var presetEnv, defaultsEnv core.EnvMap
	if desc.Preset != "" {
		preset, _, ok := c.cfg.ResolvePreset(desc.Preset)
		if !ok {
			c.warn("flow %q step %q: command references unknown preset %q", flowID, s.ID, desc.Preset)
		} else {
			presetEnv = preset.Env
		}
	}
	if spec.Defaults != nil {
		defaultsEnv = spec.Defaults.Env
	}
	merged, diff := core.MergeEnvLayers(presetEnv, defaultsEnv, desc.Env)

	cwd := desc.CWD
	rendered, err := c.render(desc.Run, map[string]any{"id": s.ID, "kind": "command"}, nil)
	if err != nil {
		return CommandDescriptorPlan{}, "", err
	}

	dp := CommandDescriptorPlan{
		Preset:      desc.Preset,
		Run:         desc.Run,
		RenderedRun: rendered,
		CWD:         cwd,
		Shell:       desc.IsShellEnabled(),
		TimeoutMs:   desc.TimeoutMs,
		Env:         merged,
		EnvDiff:     diff,
	}
	return dp, rendered, nil
}

// recordSyntheticHistory appends a successful synthetic record to the
// simulated state's history/lastCommand so downstream branches and
// templates can reference the command the way they would at execution
// time (spec.md §4.3: "append a synthetic successful record to history and
// as lastCommand").
func (c *compiler) recordSyntheticHistory(flowID, stepID, rendered string) {
	now := time.Now().UTC()
	c.st.RecordHistory(state.CommandExecutionRecord{
		ID:         core.MustNewID().String(),
		FlowID:     flowID,
		StepID:     stepID,
		Command:    rendered,
		Success:    true,
		ExitCode:   0,
		DurationMs: 0,
		StartedAt:  now,
		EndedAt:    now,
	})
}
