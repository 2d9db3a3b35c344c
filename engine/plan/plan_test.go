package plan

import (
	"context"
	"testing"

	"github.com/mathieu007/dev-wizard-engine/engine/flow"
	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/mathieu007/dev-wizard-engine/pkg/expreval"
	"github.com/mathieu007/dev-wizard-engine/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configWith(flows ...flow.Flow) *wizard.Config {
	fm := make(map[string]flow.Flow, len(flows))
	for _, f := range flows {
		fm[f.ID] = f
	}
	return &wizard.Config{
		Scenarios: []scenario.Scenario{{ID: "main", Flow: flows[0].ID}},
		Flows:     fm,
	}
}

func newOptions() Options {
	ev, err := expreval.NewEvaluator()
	if err != nil {
		panic(err)
	}
	return Options{RepoRoot: "/repo", Renderer: template.NewRenderer(), Evaluator: ev}
}

func TestCompile(t *testing.T) {
	t.Run("Should preview a single prompt step with a default value", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindPrompt, Prompt: &step.PromptSpec{
				Mode: step.ModeInput, Prompt: "Name?", DefaultValue: "world",
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		require.Len(t, out.Flows, 1)
		require.Len(t, out.Flows[0].Steps, 1)
		pp := out.Flows[0].Steps[0].Prompt
		require.NotNil(t, pp)
		assert.Equal(t, SourceDefault, pp.Source)
		assert.Equal(t, "world", pp.Value)
		assert.Zero(t, out.PendingPromptCount)
	})

	t.Run("Should mark a prompt with no answer source as pending", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindPrompt, Prompt: &step.PromptSpec{Mode: step.ModeInput, Prompt: "Name?"}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, out.PendingPromptCount)
		assert.Equal(t, SourcePending, out.Flows[0].Steps[0].Prompt.Source)
		assert.NotEmpty(t, out.Warnings)
	})

	t.Run("Should consume an override for a prompt's stored answer", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindPrompt, Prompt: &step.PromptSpec{Mode: step.ModeInput, Prompt: "Name?", StoreAs: "name"}},
		}}
		opts := newOptions()
		opts.Overrides = map[string]any{"name": "alice"}
		out, err := Compile(context.Background(), configWith(f), "main", opts)
		require.NoError(t, err)
		pp := out.Flows[0].Steps[0].Prompt
		assert.Equal(t, SourceOverride, pp.Source)
		assert.Equal(t, "alice", pp.Value)
		assert.Equal(t, []string{"name"}, out.ConsumedOverrides)
	})

	t.Run("Should render a command's env merge and record synthetic history", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindCommand, Command: &step.CommandSpec{
				Commands: []step.CommandDescriptor{{Run: "echo {{repoRoot}}"}},
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		cp := out.Flows[0].Steps[0].Command
		require.NotNil(t, cp)
		require.Len(t, cp.Commands, 1)
		assert.Equal(t, "echo /repo", cp.Commands[0].RenderedRun)
	})

	t.Run("Should select the first truthy branch clause", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindBranch, Branch: &step.BranchSpec{
				Branches: []step.BranchClause{
					{When: "ctx.repoRoot == 'nope'", Next: "a"},
					{When: "ctx.repoRoot == '/repo'", Next: "b"},
				},
				DefaultNext: step.NextExit,
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		bp := out.Flows[0].Steps[0].Branch
		require.NotNil(t, bp)
		assert.Equal(t, step.Next("b"), bp.Selected)
		assert.False(t, bp.Default)
	})

	t.Run("Should fall back to defaultNext when no branch clause matches", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindBranch, Branch: &step.BranchSpec{
				Branches:    []step.BranchClause{{When: "ctx.repoRoot == 'nope'", Next: "a"}},
				DefaultNext: step.NextExit,
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		bp := out.Flows[0].Steps[0].Branch
		assert.True(t, bp.Default)
		assert.Equal(t, step.NextExit, bp.Selected)
	})

	t.Run("Should count a static iterate source without invoking a provider", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindIterate, Iterate: &step.IterateSpec{
				Items: []any{"a", "b", "c"},
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		ip := out.Flows[0].Steps[0].Iterate
		require.NotNil(t, ip)
		assert.True(t, ip.CountKnown)
		assert.Equal(t, 3, ip.Count)
	})

	t.Run("Should mark a dynamic.command iterate source's count unknown", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindIterate, Iterate: &step.IterateSpec{
				Source: &step.IterateSource{From: "dynamic", Dynamic: &step.DynamicSource{Type: "command"}},
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		ip := out.Flows[0].Steps[0].Iterate
		assert.False(t, ip.CountKnown)
		assert.NotEmpty(t, ip.Note)
	})

	t.Run("Should merge compute values into simulated answers for a later branch", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "compute1", Type: step.KindCompute, Compute: &step.ComputeSpec{
				Values: map[string]any{"ready": "yes"},
			}},
			{ID: "branch1", Type: step.KindBranch, Branch: &step.BranchSpec{
				Branches:    []step.BranchClause{{When: "ctx.state.answers.ready == 'yes'", Next: "done"}},
				DefaultNext: step.NextExit,
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		bp := out.Flows[0].Steps[1].Branch
		require.NotNil(t, bp)
		assert.Equal(t, step.Next("done"), bp.Selected)
	})

	t.Run("Should recursively preview a group step's nested flow", func(t *testing.T) {
		inner := flow.Flow{ID: "inner", Steps: []step.Step{
			{ID: "m1", Type: step.KindMessage, Message: &step.MessageSpec{Text: "hi"}},
		}}
		outer := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "g1", Type: step.KindGroup, Group: &step.GroupSpec{Flow: "inner"}},
		}}
		out, err := Compile(context.Background(), configWith(outer, inner), "main", newOptions())
		require.NoError(t, err)
		gp := out.Flows[0].Steps[0].Group
		require.NotNil(t, gp)
		require.NotNil(t, gp.Flow)
		assert.Equal(t, "inner", gp.Flow.FlowID)
	})

	t.Run("Should note an unavailable git probe on a guard step", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: step.KindGitWorktreeGuard, Guard: &step.GuardSpec{
				Prompt: "clean", AllowCommit: true,
			}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		gp := out.Flows[0].Steps[0].Guard
		require.NotNil(t, gp)
		assert.NotEmpty(t, gp.Note)
	})

	t.Run("Should stub an unregistered plugin step rather than fail", func(t *testing.T) {
		f := flow.Flow{ID: "f1", Steps: []step.Step{
			{ID: "s1", Type: "custom-thing", Plugin: map[string]any{"id": "s1", "type": "custom-thing"}},
		}}
		out, err := Compile(context.Background(), configWith(f), "main", newOptions())
		require.NoError(t, err)
		pp := out.Flows[0].Steps[0].Plugin
		require.NotNil(t, pp)
		assert.True(t, pp.Stub)
	})

	t.Run("Should fail compiling an unknown scenario", func(t *testing.T) {
		_, err := Compile(context.Background(), &wizard.Config{}, "ghost", newOptions())
		assert.Error(t, err)
	})
}
