package composer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// loadedDoc pairs a parsed document with the path it came from, for merge
// provenance.
type loadedDoc struct {
	path string
	doc  *rawDocument
}

// importWalker performs the cycle-safe import graph traversal mirroring the
// teacher's AutoLoader.processFiles: a visiting-stack slice reports cycles
// as the full stack, and already-merged files are loaded only once.
type importWalker struct {
	root     string
	visiting []string
	loaded   map[string]bool
	out      []loadedDoc
}

func newImportWalker(root string) *importWalker {
	return &importWalker{root: root, loaded: make(map[string]bool)}
}

// walkAll resolves imports for every root-level path, in order, and returns
// the flattened, import-expanded document list (imports before the
// importing file, base candidates before overlays).
func (w *importWalker) walkAll(paths []string) ([]loadedDoc, error) {
	for _, p := range paths {
		if err := w.walk(p); err != nil {
			return nil, err
		}
	}
	return w.out, nil
}

func (w *importWalker) walk(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return core.NewError(err, "CONFIG_FILE_UNREADABLE", map[string]any{"path": path})
	}
	if w.loaded[abs] {
		return nil
	}
	for _, v := range w.visiting {
		if v == abs {
			stack := append(append([]string(nil), w.visiting...), abs)
			return core.NewError(
				fmt.Errorf("circular import detected"),
				"IMPORT_CYCLE",
				map[string]any{"stack": stack},
			)
		}
	}
	w.visiting = append(w.visiting, abs)
	defer func() { w.visiting = w.visiting[:len(w.visiting)-1] }()

	contents, err := os.ReadFile(abs)
	if err != nil {
		return core.NewError(err, "CONFIG_FILE_UNREADABLE", map[string]any{"path": abs})
	}
	doc, err := parseFile(abs, contents)
	if err != nil {
		return err
	}
	for _, spec := range doc.Imports {
		resolved, err := w.resolveImport(abs, spec)
		if err != nil {
			return err
		}
		if err := w.walk(resolved); err != nil {
			return err
		}
	}
	w.loaded[abs] = true
	w.out = append(w.out, loadedDoc{path: abs, doc: doc})
	return nil
}

// resolveImport handles the three specifier forms from spec.md §4.1: a
// relative file path, a file inside a package directory, or a package whose
// root contains a root-candidate file or a dev-wizard-config/index.*.
func (w *importWalker) resolveImport(fromFile, spec string) (string, error) {
	base := filepath.Dir(fromFile)

	if filepath.IsAbs(spec) && fileExists(spec) {
		return spec, nil
	}
	relCandidate := filepath.Join(base, spec)
	if fileExists(relCandidate) {
		return relCandidate, nil
	}

	pkgDir := filepath.Join(w.root, spec)
	if info, err := os.Stat(pkgDir); err == nil && info.IsDir() {
		d := newFileDiscoverer(pkgDir)
		for _, ext := range rootConfigExts {
			if c := d.firstExisting("dev-wizard.config" + ext); c != "" {
				return c, nil
			}
		}
		if matches, _ := d.glob("dev-wizard-config/index.*"); len(matches) > 0 {
			return matches[0], nil
		}
	}

	return "", core.NewError(
		fmt.Errorf("could not resolve import specifier %q", spec),
		"IMPORT_UNRESOLVED",
		map[string]any{"from": fromFile, "specifier": spec},
	)
}
