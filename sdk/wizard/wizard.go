// Package wizard is the end-to-end programmatic surface a host application
// drives: load a Config, describe it, preview a scenario, then run it. It
// exists one level above engine/wizard's own Config/interfaces package —
// mirroring the teacher's own sdk/compozy split from its internal engine/*
// packages — because composer, plan, and exec all import engine/wizard, and
// a facade defined inside engine/wizard would close an import cycle back
// onto itself.
package wizard

import (
	"context"

	"github.com/mathieu007/dev-wizard-engine/engine/composer"
	"github.com/mathieu007/dev-wizard-engine/engine/exec"
	"github.com/mathieu007/dev-wizard-engine/engine/plan"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// LoadConfig discovers and composes every dev-wizard.config document
// reachable from opts (spec.md §4.1), returning the merged Config plus a
// Resolution describing every file visited, in load order, with warnings.
func LoadConfig(_ context.Context, opts composer.Options) (*wizard.Config, *composer.Resolution, error) {
	return composer.Resolve(opts)
}

// Describe summarizes a composed Config for a listing UI.
func Describe(cfg *wizard.Config) *wizard.Description {
	return wizard.Describe(cfg)
}

// PlanScenario previews scenarioID's deterministic projection without
// executing a single command (spec.md §4.3).
func PlanScenario(ctx context.Context, cfg *wizard.Config, scenarioID string, opts plan.Options) (*plan.ScenarioPlan, error) {
	return plan.Compile(ctx, cfg, scenarioID, opts)
}

// ExecuteScenario runs scenarioID to completion (or early exit), driving
// every live side effect a plan only previews (spec.md §4.4).
func ExecuteScenario(ctx context.Context, cfg *wizard.Config, scenarioID string, opts exec.Options) (*state.WizardState, error) {
	executor, err := exec.NewExecutor(cfg, scenarioID, opts)
	if err != nil {
		return nil, err
	}
	return executor.Run(ctx)
}
