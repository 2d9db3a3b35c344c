package prompt

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// globProvider matches files under a cwd (spec.md §4.5's "glob" provider),
// labeling each match with its path relative to the cwd.
type globProvider struct {
	repoRoot string
}

func (p *globProvider) Resolve(_ context.Context, cfg map[string]any) ([]map[string]any, error) {
	pattern := stringConfig(cfg, "pattern")
	if pattern == "" {
		return nil, core.NewError(nil, "PROMPT_GLOB_PATTERN_MISSING", nil)
	}
	cwd := resolveUnderRoot(p.repoRoot, stringConfig(cfg, "cwd"))
	if _, err := os.Stat(cwd); err != nil {
		return nil, core.NewError(err, "PROMPT_GLOB_CWD_INVALID", map[string]any{"cwd": cwd})
	}

	fsys := os.DirFS(cwd)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, core.NewError(err, "PROMPT_GLOB_INVALID", map[string]any{"pattern": pattern})
	}

	records := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		records = append(records, map[string]any{
			"value": m,
			"label": filepath.ToSlash(m),
		})
	}
	sortRecordsByValue(records)
	return records, nil
}

func sortRecordsByValue(records []map[string]any) {
	sort.Slice(records, func(i, j int) bool {
		vi, _ := records[i]["value"].(string)
		vj, _ := records[j]["value"].(string)
		return vi < vj
	})
}
