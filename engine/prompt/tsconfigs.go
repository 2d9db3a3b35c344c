package prompt

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// projectTsconfigsProvider lists tsconfig*.json files inside a project
// directory (spec.md §4.5), appending a synthetic "Custom path…" option
// unless disabled.
type projectTsconfigsProvider struct {
	repoRoot string
}

func (p *projectTsconfigsProvider) Resolve(_ context.Context, cfg map[string]any) ([]map[string]any, error) {
	projectDir := stringConfig(cfg, "projectDir")
	if projectDir == "" {
		return nil, core.NewError(nil, "PROMPT_TSCONFIGS_PROJECT_DIR_MISSING", nil)
	}
	dir := resolveUnderRoot(p.repoRoot, projectDir)

	fsys := os.DirFS(dir)
	found, err := doublestar.Glob(fsys, "tsconfig*.json")
	if err != nil {
		return nil, core.NewError(err, "PROMPT_TSCONFIGS_GLOB_FAILED", map[string]any{"dir": dir})
	}
	sort.Strings(found)

	records := make([]map[string]any, 0, len(found)+1)
	for _, m := range found {
		records = append(records, map[string]any{
			"value": filepath.Join(projectDir, m),
			"label": m,
		})
	}
	if !boolConfig(cfg, "disableCustomPath", false) {
		records = append(records, map[string]any{
			"value": "__custom__",
			"label": "Custom path…",
		})
	}
	return records, nil
}
