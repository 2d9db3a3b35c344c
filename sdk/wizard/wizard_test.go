package wizard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mathieu007/dev-wizard-engine/engine/composer"
	"github.com/mathieu007/dev-wizard-engine/engine/exec"
	"github.com/mathieu007/dev-wizard-engine/engine/plan"
	"github.com/mathieu007/dev-wizard-engine/pkg/expreval"
	"github.com/mathieu007/dev-wizard-engine/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir string) {
	t.Helper()
	contents := `
meta:
  name: demo
  version: "1.0.0"
flows:
  main:
    id: main
    steps:
      - id: hello
        type: message
        text: "hi {{repoRoot}}"
scenarios:
  - id: default
    label: Default
    flow: main
`
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dev-wizard.config.yaml"), []byte(contents), 0o644))
}

func TestLoadConfig(t *testing.T) {
	t.Run("Should compose a single root config and report its resolution", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir)

		cfg, res, err := LoadConfig(context.Background(), composer.Options{CWD: dir})
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, "demo", cfg.Meta.Name)
		assert.Empty(t, res.Errors)
	})

	t.Run("Should surface composition errors for a missing scenario flow", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dev-wizard.config.yaml"), []byte(`
meta:
  name: broken
  version: "1.0.0"
flows: {}
scenarios:
  - id: default
    label: Default
    flow: ghost
`), 0o644))

		_, _, err := LoadConfig(context.Background(), composer.Options{CWD: dir})
		assert.Error(t, err)
	})
}

func TestDescribe(t *testing.T) {
	t.Run("Should summarize a composed config for a listing UI", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir)
		cfg, _, err := LoadConfig(context.Background(), composer.Options{CWD: dir})
		require.NoError(t, err)

		desc := Describe(cfg)
		require.Len(t, desc.Scenarios, 1)
		assert.Equal(t, "default", desc.Scenarios[0].ID)
		assert.Equal(t, 1, desc.FlowCount)
	})
}

func TestPlanScenario(t *testing.T) {
	t.Run("Should preview a scenario without running any command", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir)
		cfg, _, err := LoadConfig(context.Background(), composer.Options{CWD: dir})
		require.NoError(t, err)

		ev, err := expreval.NewEvaluator()
		require.NoError(t, err)
		out, err := PlanScenario(context.Background(), cfg, "default", plan.Options{
			RepoRoot: dir, Renderer: template.NewRenderer(), Evaluator: ev,
		})
		require.NoError(t, err)
		require.Len(t, out.Flows, 1)
		assert.Equal(t, "hello", out.Flows[0].Steps[0].StepID)
	})
}

func TestExecuteScenario(t *testing.T) {
	t.Run("Should run a scenario to completion", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir)
		cfg, _, err := LoadConfig(context.Background(), composer.Options{CWD: dir})
		require.NoError(t, err)

		ev, err := expreval.NewEvaluator()
		require.NoError(t, err)
		st, err := ExecuteScenario(context.Background(), cfg, "default", exec.Options{
			Mode: exec.ModeLive, RepoRoot: dir, Renderer: template.NewRenderer(), Evaluator: ev,
		})
		require.NoError(t, err)
		assert.Equal(t, "complete", string(st.Phase))
		assert.Zero(t, st.FailedSteps)
	})

	t.Run("Should fail for a scenario id absent from the config", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir)
		cfg, _, err := LoadConfig(context.Background(), composer.Options{CWD: dir})
		require.NoError(t, err)

		ev, err := expreval.NewEvaluator()
		require.NoError(t, err)
		_, err = ExecuteScenario(context.Background(), cfg, "ghost", exec.Options{
			RepoRoot: dir, Renderer: template.NewRenderer(), Evaluator: ev,
		})
		assert.Error(t, err)
	})
}
