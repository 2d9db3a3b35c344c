package composer

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// structValidator runs the `validate:"..."` struct tags on step.PromptSpec
// and step.CommandDescriptor (engine/step/prompt.go, command.go). A single
// package-wide instance is safe for concurrent use per the library's own
// contract.
var structValidator = validator.New(validator.WithRequiredStructEnabled())

// LintIssues walks a composed Config and reports the semantic lint issues
// named in spec.md §7: unknown flow references, unknown branch targets,
// worktree guards with no enabled strategy. Errors are fatal at a higher
// layer's discretion; this function only ever returns warnings, since the
// composer's contract is to still return a usable Config (spec.md §4.1
// "any hard failure yields an error result" applies to composer-level
// structural failures, not lint).
func LintIssues(cfg *wizard.Config) []string {
	var issues []string
	for i := range cfg.Scenarios {
		sc := &cfg.Scenarios[i]
		for _, flowID := range sc.FlowSequence() {
			if _, ok := cfg.Flows[flowID]; !ok {
				issues = append(issues, fmt.Sprintf("scenario %q references unknown flow %q", sc.ID, flowID))
			}
		}
		for _, hook := range sc.PostRun {
			if _, ok := cfg.Flows[hook.Flow]; !ok {
				issues = append(issues, fmt.Sprintf("scenario %q postRun references unknown flow %q", sc.ID, hook.Flow))
			}
		}
	}
	for id, f := range cfg.Flows {
		for _, s := range f.Steps {
			issues = append(issues, lintStep(cfg, id, &f, s)...)
		}
	}
	return issues
}

// structFieldIssues runs structValidator over a step.PromptSpec or
// step.CommandDescriptor and formats any violated `validate:"..."` tags as
// lint issue strings in the same style as the rest of this file.
func structFieldIssues(flowID, stepID, kind string, v any) []string {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{fmt.Sprintf("flow %q step %q: %s failed validation: %s", flowID, stepID, kind, err)}
	}
	issues := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, fmt.Sprintf(
			"flow %q step %q: %s %s failed %q validation",
			flowID, stepID, kind, fe.Namespace(), fe.Tag(),
		))
	}
	return issues
}

func lintStep(cfg *wizard.Config, flowID string, f interface{ HasStep(string) bool }, s step.Step) []string {
	var issues []string
	checkNext := func(next step.Next, where string) {
		if next == step.NextUndefined || next == step.NextExit || next == step.NextRepeat {
			return
		}
		if !f.HasStep(string(next)) {
			issues = append(issues, fmt.Sprintf("flow %q step %q: %s targets unknown step %q", flowID, s.ID, where, next))
		}
	}
	if s.Type == step.KindPrompt && s.Prompt != nil {
		issues = append(issues, structFieldIssues(flowID, s.ID, "prompt", s.Prompt)...)
	}
	if s.Type == step.KindCommand && s.Command != nil {
		for i := range s.Command.Commands {
			issues = append(issues, structFieldIssues(flowID, s.ID, "command", &s.Command.Commands[i])...)
		}
	}
	switch s.Type {
	case step.KindBranch:
		if s.Branch != nil {
			for _, c := range s.Branch.Branches {
				checkNext(c.Next, "branch clause")
			}
			checkNext(s.Branch.DefaultNext, "defaultNext")
		}
	case step.KindMessage:
		if s.Message != nil {
			checkNext(s.Message.Next, "next")
		}
	case step.KindCompute:
		if s.Compute != nil {
			checkNext(s.Compute.Next, "next")
		}
	case step.KindGroup:
		if s.Group != nil {
			if _, ok := cfg.Flows[s.Group.Flow]; !ok {
				issues = append(issues, fmt.Sprintf("flow %q step %q: group references unknown flow %q", flowID, s.ID, s.Group.Flow))
			}
		}
	case step.KindIterate:
		if s.Iterate != nil {
			if _, ok := cfg.Flows[s.Iterate.Flow]; !ok {
				issues = append(issues, fmt.Sprintf("flow %q step %q: iterate references unknown flow %q", flowID, s.ID, s.Iterate.Flow))
			}
		}
	case step.KindCommand:
		if s.Command != nil {
			if s.Command.OnSuccess != nil {
				checkNext(s.Command.OnSuccess.Next, "onSuccess.next")
			}
			if s.Command.OnError != nil {
				if s.Command.OnError.DefaultNext != nil {
					checkNext(s.Command.OnError.DefaultNext.Next, "onError.defaultNext.next")
				}
				for _, a := range s.Command.OnError.Actions {
					checkNext(a.Next, "onError.actions[*].next")
				}
			}
		}
	case step.KindGitWorktreeGuard:
		if s.Guard != nil && !s.Guard.AnyStrategyEnabled() {
			issues = append(issues, fmt.Sprintf("flow %q step %q: git-worktree-guard has no strategy enabled", flowID, s.ID))
		}
	}
	return issues
}
