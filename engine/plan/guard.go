package plan

import "github.com/mathieu007/dev-wizard-engine/engine/step"

// GuardStepPlan previews a git-worktree-guard step: the probed status, the
// strategy chosen (or pending) if the tree is dirty, and which recovery
// strategies the step allows.
type GuardStepPlan struct {
	Clean             bool     `json:"clean"`
	Branch            string   `json:"branch,omitempty"`
	ChangedFiles      []string `json:"changedFiles,omitempty"`
	Message           string   `json:"message,omitempty"`
	AllowedStrategies []string `json:"allowedStrategies,omitempty"`
	Strategy          string   `json:"strategy,omitempty"`
	Pending           bool     `json:"pending,omitempty"`
	Note              string   `json:"note,omitempty"`
}

func (c *compiler) compileGuard(flowID string, s step.Step, sp StepPlan) (StepPlan, error) {
	spec := s.Guard
	if spec == nil {
		return sp, nil
	}
	gp := &GuardStepPlan{AllowedStrategies: allowedGuardStrategies(spec)}

	dir := spec.CWD
	if dir == "" {
		dir = c.opts.RepoRoot
	}
	if c.opts.GitOpen == nil {
		gp.Note = "git status probe unavailable (no GitOpen configured)"
		sp.Guard = gp
		c.emit("plan.guard", flowID, s.ID, map[string]any{"note": gp.Note})
		return sp, nil
	}

	probe, err := c.opts.GitOpen(dir)
	if err != nil {
		c.warn("flow %q step %q: opening worktree at %q: %s", flowID, s.ID, dir, err)
		gp.Note = "failed to open worktree"
		sp.Guard = gp
		return sp, nil
	}
	status, err := probe.Status()
	if err != nil {
		c.warn("flow %q step %q: reading worktree status at %q: %s", flowID, s.ID, dir, err)
		gp.Note = "failed to read worktree status"
		sp.Guard = gp
		return sp, nil
	}

	gp.Clean = status.Clean
	gp.Branch = status.Branch
	if status.Clean {
		gp.Message = "working tree is clean"
		sp.Guard = gp
		c.emit("plan.guard", flowID, s.ID, map[string]any{"clean": true})
		return sp, nil
	}

	gp.ChangedFiles = status.ChangedFiles
	rendered, err := c.render(spec.Prompt, map[string]any{"id": s.ID, "kind": "git-worktree-guard"}, nil)
	if err != nil {
		return StepPlan{}, err
	}
	gp.Message = rendered

	key := strategyAnswerKey(s.ID, spec)
	if v, ok := c.opts.Overrides[key]; ok {
		c.consumed[key] = true
		gp.Strategy, _ = v.(string)
	} else if v, ok := c.st.Answers[key]; ok {
		gp.Strategy, _ = v.(string)
	} else {
		gp.Pending = true
		c.pending++
		c.warn("flow %q step %q: dirty worktree has no stored recovery strategy", flowID, s.ID)
	}

	sp.Guard = gp
	c.emit("plan.guard", flowID, s.ID, map[string]any{"clean": false, "strategy": gp.Strategy, "pending": gp.Pending})
	return sp, nil
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
		out = append(out, "commit-push")
	}
	if spec.AllowStash {
		out = append(out, "stash")
	}
	if spec.AllowBranch {
		out = append(out, "branch")
	}
	if spec.AllowProceed {
		out = append(out, "proceed")
	}
	return out
}
