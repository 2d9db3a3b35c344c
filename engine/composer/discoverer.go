// Package composer discovers, parses, merges and validates overlay
// configuration documents into one canonical wizard.Config, directly
// adapted from the teacher's engine/autoload package (doublestar-based
// discovery, the same path-escape guard, and a first-registration-wins
// merge heritage).
package composer

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// fileDiscoverer locates candidate files under root by glob pattern,
// guarding against absolute-path and parent-directory escapes exactly as
// the teacher's autoload.fsDiscoverer does.
type fileDiscoverer struct {
	root string
}

func newFileDiscoverer(root string) *fileDiscoverer {
	return &fileDiscoverer{root: root}
}

// glob returns every file under root matching pattern, sorted
// lexicographically by absolute path.
func (d *fileDiscoverer) glob(pattern string) ([]string, error) {
	if err := d.validatePattern(pattern); err != nil {
		return nil, err
	}
	full := filepath.Join(d.root, pattern)
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	for _, m := range matches {
		rel, err := filepath.Rel(d.root, m)
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			return nil, core.NewError(nil, "PATH_ESCAPE_ATTEMPT", map[string]any{
				"file": m,
				"root": d.root,
			})
		}
	}
	slices.Sort(matches)
	return matches, nil
}

// validatePattern rejects absolute paths and ".." segments before any
// filesystem access happens.
func (d *fileDiscoverer) validatePattern(pattern string) error {
	clean := filepath.Clean(pattern)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("INVALID_PATTERN: absolute paths not allowed: %s", pattern)
	}
	if slices.Contains(strings.Split(clean, string(filepath.Separator)), "..") {
		return fmt.Errorf("INVALID_PATTERN: parent directory references not allowed: %s", pattern)
	}
	return nil
}

// firstExisting returns the first candidate (joined with root) that exists
// on disk, or "" if none do.
func (d *fileDiscoverer) firstExisting(candidates ...string) string {
	for _, c := range candidates {
		full := filepath.Join(d.root, c)
		if fileExists(full) {
			return full
		}
	}
	return ""
}
