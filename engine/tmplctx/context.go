// Package tmplctx builds the single template-context shape shared by the
// plan compiler (engine/plan) and the execution engine (engine/exec), so
// the two walkers can never drift on what a template or expression sees.
package tmplctx

import (
	"os"
	"strings"

	"github.com/mathieu007/dev-wizard-engine/engine/state"
)

// Params is everything Build needs to project one template context.
type Params struct {
	State           *state.WizardState
	RepoRoot        string
	StepMetadata    map[string]any
	Iteration       *state.Iteration
	IdentityByID    map[string]any
	AnswersFileName string
	AnswersFileBase string
}

// Build returns {state:{answers,scenario,lastCommand,repoRoot,identity,
// identityById,answersFileName?,answersFileBase?}, step, env, repoRoot,
// iteration?}, matching every template/expression evaluation's context.
func Build(p Params) map[string]any {
	stateCtx := map[string]any{
		"answers":     p.State.Answers,
		"scenario":    p.State.Scenario,
		"lastCommand": p.State.LastCommand,
		"repoRoot":    p.RepoRoot,
	}
	if p.State.Identity != nil {
		stateCtx["identity"] = p.State.Identity
	}
	if p.IdentityByID != nil {
		stateCtx["identityById"] = p.IdentityByID
	}
	if p.AnswersFileName != "" {
		stateCtx["answersFileName"] = p.AnswersFileName
	}
	if p.AnswersFileBase != "" {
		stateCtx["answersFileBase"] = p.AnswersFileBase
	}

	ctx := map[string]any{
		"state":    stateCtx,
		"step":     p.StepMetadata,
		"env":      processEnv(),
		"repoRoot": p.RepoRoot,
	}
	if p.Iteration != nil {
		ctx["iteration"] = p.Iteration
	}
	return ctx
}

func processEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}
