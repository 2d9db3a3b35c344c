package composer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// EntrySource tags a ResolutionEntry with where it was discovered.
type EntrySource string

const (
	SourceExplicit    EntrySource = "explicit"
	SourceRoot        EntrySource = "root"
	SourceDirBase     EntrySource = "dir-base"
	SourceDirEnv      EntrySource = "dir-env"
	SourceDirLocal    EntrySource = "dir-local"
	SourceRootLocal   EntrySource = "root-local"
	SourcePackageJSON EntrySource = "package-json"
)

// ResolutionEntry is one probed location, tagged found/missing.
type ResolutionEntry struct {
	Path   string      `json:"path"`
	Source EntrySource `json:"source"`
	Found  bool        `json:"found"`
}

// Resolution is the discovery diagnostic record returned alongside Config.
type Resolution struct {
	Entries  []ResolutionEntry `json:"entries"`
	Errors   []error           `json:"-"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Options parameterizes discovery.
type Options struct {
	CWD                   string
	ExplicitPaths         []string
	Environment           string
	DisableLocal          bool
	ApplyPersistedAnswers bool
}

var rootConfigExts = []string{".yaml", ".yml", ".json", ".json5"}

// discover runs the four-phase discovery order from spec.md §4.1,
// appending entries in discovery order and de-duplicating by absolute path.
func discover(opts Options) ([]string, *Resolution) {
	res := &Resolution{}
	seen := make(map[string]bool)
	add := func(path string, source EntrySource, found bool) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
		res.Entries = append(res.Entries, ResolutionEntry{Path: path, Source: source, Found: found})
	}
	var loadOrder []string
	appendIfNew := func(path string) {
		abs, _ := filepath.Abs(path)
		if seen[abs] {
			return
		}
		seen[abs] = true
		loadOrder = append(loadOrder, path)
	}

	if len(opts.ExplicitPaths) > 0 {
		for _, p := range opts.ExplicitPaths {
			full := p
			if !filepath.IsAbs(full) {
				full = filepath.Join(opts.CWD, p)
			}
			found := fileExists(full)
			add(full, SourceExplicit, found)
			if !found {
				res.Errors = append(res.Errors, core.NewError(
					fmt.Errorf("explicit config path not found: %s", full),
					"CONFIG_FILE_MISSING",
					map[string]any{"path": full},
				))
				continue
			}
			appendIfNew(full)
		}
		return loadOrder, res
	}

	d := newFileDiscoverer(opts.CWD)

	for _, ext := range rootConfigExts {
		candidate := filepath.Join(opts.CWD, "dev-wizard.config"+ext)
		found := fileExists(candidate)
		add(candidate, SourceRoot, found)
		if found {
			appendIfNew(candidate)
		}
	}

	baseMatches, _ := d.glob("dev-wizard-config/index.*")
	for _, m := range baseMatches {
		add(m, SourceDirBase, true)
		appendIfNew(m)
	}

	if opts.Environment != "" {
		envMatches, _ := d.glob(fmt.Sprintf("dev-wizard-config/environments/%s/index.*", opts.Environment))
		for _, m := range envMatches {
			add(m, SourceDirEnv, true)
			appendIfNew(m)
		}
	}

	if !opts.DisableLocal {
		localMatches, _ := d.glob("dev-wizard-config/local/index.*")
		for _, m := range localMatches {
			add(m, SourceDirLocal, true)
			appendIfNew(m)
		}
		rootLocalMatches, _ := d.glob("dev-wizard.config.local.*")
		for _, m := range rootLocalMatches {
			add(m, SourceRootLocal, true)
			appendIfNew(m)
		}
	}

	pkgPath := filepath.Join(opts.CWD, "package.json")
	if fileExists(pkgPath) {
		paths, err := wizardConfigFieldFromPackageJSON(pkgPath)
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
		for _, p := range paths {
			full := p
			if !filepath.IsAbs(full) {
				full = filepath.Join(opts.CWD, p)
			}
			found := fileExists(full)
			add(full, SourcePackageJSON, found)
			if !found {
				res.Errors = append(res.Errors, core.NewError(
					fmt.Errorf("package.json wizard.config path not found: %s", full),
					"CONFIG_FILE_MISSING",
					map[string]any{"path": full},
				))
				continue
			}
			appendIfNew(full)
		}
	}

	return loadOrder, res
}

// wizardConfigFieldFromPackageJSON reads package.json's wizard.config field,
// which may be a string or an array of strings.
func wizardConfigFieldFromPackageJSON(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(err, "CONFIG_FILE_UNREADABLE", map[string]any{"path": path})
	}
	var pkg struct {
		Wizard struct {
			Config json.RawMessage `json:"config"`
		} `json:"wizard"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, core.NewError(err, "CONFIG_PARSE_FAILED", map[string]any{"filePath": path})
	}
	if len(pkg.Wizard.Config) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(pkg.Wizard.Config, &single); err == nil {
		return []string{single}, nil
	}
	var multi []string
	if err := json.Unmarshal(pkg.Wizard.Config, &multi); err == nil {
		return multi, nil
	}
	return nil, core.NewError(
		fmt.Errorf("wizard.config must be a string or an array of strings"),
		"CONFIG_SCHEMA_INVALID",
		map[string]any{"filePath": path},
	)
}
