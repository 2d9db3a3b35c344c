package composer

import (
	"fmt"
	"os"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// Resolve turns opts into a canonical wizard.Config plus a diagnostic
// Resolution, implementing the composer's four-phase discovery, parse,
// import-graph and merge contract from spec.md §4.1 in full. Any hard
// failure yields an error result rather than a partial Config.
func Resolve(opts Options) (*wizard.Config, *Resolution, error) {
	cwd, err := core.CWDFromPath(opts.CWD)
	if err != nil {
		return nil, &Resolution{}, core.NewError(err, "CONFIG_CWD_INVALID", map[string]any{"cwd": opts.CWD})
	}
	opts.CWD = cwd.PathStr()

	paths, res := discover(opts)
	if len(res.Errors) > 0 {
		return nil, res, firstError(res.Errors)
	}

	walker := newImportWalker(opts.CWD)
	docs, err := walker.walkAll(paths)
	if err != nil {
		res.Errors = append(res.Errors, err)
		return nil, res, err
	}

	m := newMerger()
	for _, d := range docs {
		contents, readErr := os.ReadFile(d.path)
		if readErr == nil {
			if warning := legacyWarning(d.path, contents); warning != "" {
				res.Warnings = append(res.Warnings, warning)
			}
		}
		m.apply(d.path, d.doc)
	}
	cfg, warnings, errs := m.build()
	res.Warnings = append(res.Warnings, warnings...)
	if len(errs) > 0 {
		res.Errors = append(res.Errors, errs...)
		return nil, res, firstError(errs)
	}

	res.Warnings = append(res.Warnings, LintIssues(cfg)...)
	return cfg, res, nil
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return core.NewError(errs[0], "CONFIG_COMPOSE_FAILED", map[string]any{
		"errorCount": len(errs),
		"first":      errs[0].Error(),
	})
}

// MustHaveScenario is a small convenience used by engine/wizard's facade to
// turn a missing scenario id into a stable error code.
func MustHaveScenario(cfg *wizard.Config, scenarioID string) error {
	if _, ok := cfg.FindScenario(scenarioID); !ok {
		return core.NewError(fmt.Errorf("unknown scenario %q", scenarioID), "UNKNOWN_SCENARIO", map[string]any{
			"scenarioId": scenarioID,
		})
	}
	return nil
}
