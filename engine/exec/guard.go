package exec

import (
	"context"
	"fmt"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

const (
	strategyCommitPush = "commit-push"
	strategyStash      = "stash"
	strategyBranch     = "branch"
	strategyProceed    = "proceed"
)

// defaultCommitAuthor is used whenever Options.CommitAuthor is unset.
var defaultCommitAuthor = core.Author{Name: "dev-wizard", Email: "dev-wizard@local"}

func (e *Executor) commitAuthor() core.Author {
	if e.opts.CommitAuthor != nil {
		return *e.opts.CommitAuthor
	}
	return defaultCommitAuthor
}

func strategyAnswerKey(stepID string, spec *step.GuardSpec) string {
	if spec.StoreStrategyAs != "" {
		return spec.StoreStrategyAs
	}
	return stepID + ".strategy"
}

func allowedGuardStrategies(spec *step.GuardSpec) []string {
	var out []string
	if spec.AllowCommit {
		out = append(out, strategyCommitPush)
	}
	if spec.AllowStash {
		out = append(out, strategyStash)
	}
	if spec.AllowBranch {
		out = append(out, strategyBranch)
	}
	if spec.AllowProceed {
		out = append(out, strategyProceed)
	}
	return out
}

func (e *Executor) executeGuard(ctx context.Context, flowID string, s step.Step) (stepResult, error) {
	spec := s.Guard

	dir := spec.CWD
	if dir == "" {
		dir = e.opts.RepoRoot
	}
	if e.opts.GitOpen == nil {
		return stepResult{}, core.NewError(nil, "GIT_GUARD_UNAVAILABLE", map[string]any{"flowId": flowID, "stepId": s.ID})
	}
	repo, err := e.opts.GitOpen(dir)
	if err != nil {
		return stepResult{}, core.NewError(err, "GIT_GUARD_OPEN_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID, "dir": dir})
	}
	status, err := repo.Status()
	if err != nil {
		return stepResult{}, core.NewError(err, "GIT_GUARD_STATUS_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID, "dir": dir})
	}

	if status.Clean {
		e.note(step.LevelInfo, "working tree is clean", map[string]any{"flowId": flowID, "stepId": s.ID, "branch": status.Branch})
		return stepResult{next: step.NextUndefined, status: statusSuccess}, nil
	}

	strategy, err := e.resolveGuardStrategy(ctx, flowID, s, spec, status)
	if err != nil {
		return stepResult{}, err
	}

	if err := e.applyGuardStrategy(ctx, flowID, s, repo, strategy); err != nil {
		return stepResult{}, err
	}
	return stepResult{next: step.NextUndefined, status: statusSuccess}, nil
}

func (e *Executor) resolveGuardStrategy(ctx context.Context, flowID string, s step.Step, spec *step.GuardSpec, status *GitStatus) (string, error) {
	key := strategyAnswerKey(s.ID, spec)

	if v, ok := e.opts.Overrides[key]; ok {
		if str, ok := v.(string); ok {
			e.st.Answers[key] = str
			return str, nil
		}
	}
	if v, ok := e.st.Answers[key]; ok {
		if str, ok := v.(string); ok {
			return str, nil
		}
	}

	allowed := allowedGuardStrategies(spec)
	if len(allowed) == 0 {
		return "", core.NewError(nil, "GIT_GUARD_NO_STRATEGY_ALLOWED", map[string]any{"flowId": flowID, "stepId": s.ID})
	}

	if !e.opts.Interactive || e.opts.PromptDriver == nil {
		return "", core.NewError(nil, "GIT_GUARD_STRATEGY_REQUIRED", map[string]any{"flowId": flowID, "stepId": s.ID, "changedFiles": status.ChangedFiles})
	}

	rendered, err := e.render(spec.Prompt, map[string]any{"id": s.ID, "kind": "git-worktree-guard"})
	if err != nil {
		return "", err
	}
	options := make([]step.Option, len(allowed))
	for i, a := range allowed {
		options[i] = step.Option{Value: a, Label: a}
	}
	answer, err := e.opts.PromptDriver.Ask(ctx, wizard.PromptRequest{
		StepID:   s.ID,
		Mode:     step.ModeSelect,
		Prompt:   rendered,
		Options:  options,
		Required: true,
	})
	if err != nil {
		return "", core.NewError(err, "GIT_GUARD_STRATEGY_PROMPT_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
	}
	str, _ := answer.(string)
	if str == "" {
		return "", core.NewError(nil, "GIT_GUARD_STRATEGY_REQUIRED", map[string]any{"flowId": flowID, "stepId": s.ID})
	}
	e.st.Answers[key] = str
	return str, nil
}

func (e *Executor) applyGuardStrategy(ctx context.Context, flowID string, s step.Step, repo GitRepo, strategy string) error {
	switch strategy {
	case strategyProceed:
		e.note(step.LevelWarning, "proceeding with a dirty worktree", map[string]any{"flowId": flowID, "stepId": s.ID})
		return nil

	case strategyStash:
		message := fmt.Sprintf("dev-wizard: stash before %s", s.ID)
		if err := repo.Stash(message); err != nil {
			return core.NewError(err, "GIT_GUARD_STASH_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
		}
		return nil

	case strategyCommitPush:
		message, err := e.askGuardText(ctx, s.ID, "commitMessage", "Commit message?", "dev-wizard: checkpoint")
		if err != nil {
			return err
		}
		author := e.commitAuthor()
		if err := repo.StageCommitPush(message, author.Name, author.Email); err != nil {
			return core.NewError(err, "GIT_GUARD_COMMIT_PUSH_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
		}
		return nil

	case strategyBranch:
		branch, err := e.askGuardText(ctx, s.ID, "branchName", "Branch name?", fmt.Sprintf("dev-wizard/%s", s.ID))
		if err != nil {
			return err
		}
		if err := repo.CreateBranch(branch); err != nil {
			return core.NewError(err, "GIT_GUARD_BRANCH_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID, "branch": branch})
		}
		message, err := e.askGuardText(ctx, s.ID, "commitMessage", "Commit message?", "dev-wizard: checkpoint")
		if err != nil {
			return err
		}
		author := e.commitAuthor()
		if err := repo.StageCommitPush(message, author.Name, author.Email); err != nil {
			return core.NewError(err, "GIT_GUARD_COMMIT_PUSH_FAILED", map[string]any{"flowId": flowID, "stepId": s.ID})
		}
		return nil

	default:
		return core.NewError(nil, "GIT_GUARD_STRATEGY_UNKNOWN", map[string]any{"flowId": flowID, "stepId": s.ID, "strategy": strategy})
	}
}

// askGuardText resolves a synthesized sub-prompt (e.g. a commit message or
// branch name) needed to carry out a chosen guard strategy: an override
// keyed by suffix, else an interactive ask, else a fixed default.
func (e *Executor) askGuardText(ctx context.Context, stepID, suffix, prompt, fallback string) (string, error) {
	key := stepID + "." + suffix
	if v, ok := e.opts.Overrides[key]; ok {
		if str, ok := v.(string); ok {
			return str, nil
		}
	}
	if !e.opts.Interactive || e.opts.PromptDriver == nil {
		return fallback, nil
	}
	answer, err := e.opts.PromptDriver.Ask(ctx, wizard.PromptRequest{
		StepID:       stepID,
		Mode:         step.ModeInput,
		Prompt:       prompt,
		DefaultValue: fallback,
	})
	if err != nil {
		return "", core.NewError(err, "GIT_GUARD_STRATEGY_PROMPT_FAILED", map[string]any{"stepId": stepID})
	}
	str, ok := answer.(string)
	if !ok || str == "" {
		return fallback, nil
	}
	return str, nil
}
