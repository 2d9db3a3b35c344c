package composer

import (
	"strings"
	"testing"

	"github.com/mathieu007/dev-wizard-engine/engine/flow"
	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configWithFlow(f flow.Flow) *wizard.Config {
	return &wizard.Config{
		Scenarios: []scenario.Scenario{{ID: "main", Flow: f.ID}},
		Flows:     map[string]flow.Flow{f.ID: f},
	}
}

func TestLintIssuesCrossReferences(t *testing.T) {
	t.Run("Should flag a scenario referencing an unknown flow", func(t *testing.T) {
		cfg := &wizard.Config{
			Scenarios: []scenario.Scenario{{ID: "main", Flow: "ghost"}},
			Flows:     map[string]flow.Flow{},
		}
		issues := LintIssues(cfg)
		require.NotEmpty(t, issues)
		assert.Contains(t, issues[0], `unknown flow "ghost"`)
	})

	t.Run("Should flag a branch targeting an unknown step", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{
					ID:   "s1",
					Type: step.KindBranch,
					Branch: &step.BranchSpec{
						Branches:    []step.BranchClause{{Next: "nowhere"}},
						DefaultNext: step.NextExit,
					},
				},
			},
		}
		issues := LintIssues(configWithFlow(f))
		require.NotEmpty(t, issues)
		assert.Contains(t, issues[0], `targets unknown step "nowhere"`)
	})

	t.Run("Should flag a git-worktree-guard with no strategy enabled", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{ID: "s1", Type: step.KindGitWorktreeGuard, Guard: &step.GuardSpec{}},
			},
		}
		issues := LintIssues(configWithFlow(f))
		require.NotEmpty(t, issues)
		assert.Contains(t, issues[0], "no strategy enabled")
	})
}

func TestLintIssuesStructValidation(t *testing.T) {
	t.Run("Should flag a prompt step with an invalid mode", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{ID: "s1", Type: step.KindPrompt, Prompt: &step.PromptSpec{Mode: "bogus", Prompt: "Pick one"}},
			},
		}
		issues := LintIssues(configWithFlow(f))
		require.NotEmpty(t, issues)
		assert.Contains(t, issues[0], `step "s1": prompt`)
		assert.Contains(t, issues[0], `"oneof"`)
	})

	t.Run("Should flag a prompt step with an empty prompt text", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{ID: "s1", Type: step.KindPrompt, Prompt: &step.PromptSpec{Mode: step.ModeInput}},
			},
		}
		issues := LintIssues(configWithFlow(f))
		found := false
		for _, i := range issues {
			if strings.Contains(i, "Prompt") && strings.Contains(i, "required") {
				found = true
			}
		}
		assert.True(t, found, "expected a required-validation issue for Prompt, got %v", issues)
	})

	t.Run("Should pass a well-formed prompt step", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{ID: "s1", Type: step.KindPrompt, Prompt: &step.PromptSpec{Mode: step.ModeInput, Prompt: "Name?"}},
			},
		}
		assert.Empty(t, LintIssues(configWithFlow(f)))
	})

	t.Run("Should flag a command descriptor with no run text", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{
					ID:   "s1",
					Type: step.KindCommand,
					Command: &step.CommandSpec{
						Commands: []step.CommandDescriptor{{Preset: "lint"}},
					},
				},
			},
		}
		issues := LintIssues(configWithFlow(f))
		found := false
		for _, i := range issues {
			if strings.Contains(i, "command") && strings.Contains(i, "Run") {
				found = true
			}
		}
		assert.True(t, found, "expected a Run-required issue, got %v", issues)
	})

	t.Run("Should not flag a command descriptor that sets run and a preset", func(t *testing.T) {
		f := flow.Flow{
			ID: "f1",
			Steps: []step.Step{
				{
					ID:   "s1",
					Type: step.KindCommand,
					Command: &step.CommandSpec{
						Commands: []step.CommandDescriptor{{Run: "echo hi", Preset: "lint"}},
					},
				},
			},
		}
		assert.Empty(t, LintIssues(configWithFlow(f)))
	})
}
