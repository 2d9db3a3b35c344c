package prompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// workspaceProjectsProvider walks the workspace tree depth-first up to
// maxDepth (spec.md §4.5), treating any directory containing a
// package.json as a project. value is the path relative to repoRoot; label
// is the package.json "name" field, falling back to the directory name.
type workspaceProjectsProvider struct {
	repoRoot string
}

func (p *workspaceProjectsProvider) Resolve(_ context.Context, cfg map[string]any) ([]map[string]any, error) {
	maxDepth := intConfig(cfg, "maxDepth", 4)
	ignore := stringSetConfig(cfg, "ignore", []string{"node_modules", ".git", "dist", "build"})

	var records []map[string]any
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if ignore[e.Name()] {
				continue
			}
			childDir := filepath.Join(dir, e.Name())
			if pkgName, ok := readPackageName(filepath.Join(childDir, "package.json")); ok {
				rel, _ := filepath.Rel(p.repoRoot, childDir)
				rel = filepath.ToSlash(rel)
				label := pkgName
				if label == "" {
					label = e.Name()
				}
				records = append(records, map[string]any{"value": rel, "label": label})
			}
			if err := walk(childDir, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(p.repoRoot, 1); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i]["value"].(string) < records[j]["value"].(string)
	})
	return records, nil
}

func readPackageName(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", true
	}
	return pkg.Name, true
}

func stringSetConfig(cfg map[string]any, key string, def []string) map[string]bool {
	out := make(map[string]bool)
	raw, ok := cfg[key].([]any)
	if !ok {
		for _, d := range def {
			out[d] = true
		}
		return out
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out[s] = true
		}
	}
	return out
}
