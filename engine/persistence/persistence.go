// Package persistence implements the cross-run prompt-answer store
// (engine/wizard.PersistenceStore) at
// <repoRoot>/.dev-wizard/answers/<sanitized scenarioId>.json.
package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// deepEqualJSON reports whether a and b carry the same value, falling back
// to a canonical-JSON byte comparison (core.StableJSONBytes) for values that
// arrive as different concrete numeric/map types across a round-trip
// through YAML/JSON prompt answers but serialize identically.
func deepEqualJSON(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return string(core.StableJSONBytes(a)) == string(core.StableJSONBytes(b))
}

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitize(s string) string {
	return sanitizeRe.ReplaceAllString(s, "-")
}

// Meta carries optional provenance about the answer file's origin scenario.
type Meta struct {
	ScenarioID string         `json:"scenarioId,omitempty"`
	Identity   map[string]any `json:"identity,omitempty"`
	Execution  map[string]any `json:"execution,omitempty"`
}

// document is the on-disk shape of one scenario's answer file.
type document struct {
	Scenario map[string]any            `json:"scenario"`
	Projects map[string]map[string]any `json:"projects"`
	Meta     Meta                       `json:"meta"`
}

// Store is the file-backed PersistenceStore for one scenario.
type Store struct {
	path  string
	doc   document
	dirty bool
}

// Open loads (or initializes) the answer file for scenarioID under repoRoot.
func Open(repoRoot, scenarioID string) (*Store, error) {
	path := filepath.Join(repoRoot, ".dev-wizard", "answers", sanitize(scenarioID)+".json")
	s := &Store{path: path, doc: document{
		Scenario: make(map[string]any),
		Projects: make(map[string]map[string]any),
	}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, core.NewError(err, "PERSISTENCE_IO_FAILED", map[string]any{"path": path})
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, core.NewError(err, "PERSISTENCE_IO_FAILED", map[string]any{"path": path})
	}
	if s.doc.Scenario == nil {
		s.doc.Scenario = make(map[string]any)
	}
	if s.doc.Projects == nil {
		s.doc.Projects = make(map[string]map[string]any)
	}
	return s, nil
}

// Get returns the stored value for (scope, key[, projectID]).
func (s *Store) Get(scope string, key string, projectID string) (any, bool) {
	if scope == "project" {
		proj, ok := s.doc.Projects[projectID]
		if !ok {
			return nil, false
		}
		v, ok := proj[key]
		return v, ok
	}
	v, ok := s.doc.Scenario[key]
	return v, ok
}

// Set stores value for (scope, key[, projectID]), marking the store dirty
// only if the new value is not deep-equal to the existing one.
func (s *Store) Set(scope string, key string, projectID string, value any) error {
	if scope == "project" {
		if projectID == "" {
			return core.NewError(nil, "PERSISTENCE_SCOPE_INVALID", map[string]any{"scope": scope})
		}
		proj, ok := s.doc.Projects[projectID]
		if !ok {
			proj = make(map[string]any)
			s.doc.Projects[projectID] = proj
		}
		if existing, ok := proj[key]; ok && deepEqualJSON(existing, value) {
			return nil
		}
		proj[key] = value
		s.dirty = true
		return nil
	}
	if existing, ok := s.doc.Scenario[key]; ok && deepEqualJSON(existing, value) {
		return nil
	}
	s.doc.Scenario[key] = value
	s.dirty = true
	return nil
}

// SetMeta replaces the store's meta block with m, marking it dirty.
func (s *Store) SetMeta(m Meta) {
	s.doc.Meta = m
	s.dirty = true
}

// Save writes the answer file atomically, skipped unless dirty.
func (s *Store) Save() error {
	if !s.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return core.NewError(err, "PERSISTENCE_IO_FAILED", map[string]any{"path": s.path})
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return core.NewError(err, "PERSISTENCE_IO_FAILED", map[string]any{"path": s.path})
	}
	data = append(data, '\n')
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return core.NewError(err, "PERSISTENCE_IO_FAILED", map[string]any{"path": s.path})
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return core.NewError(err, "PERSISTENCE_IO_FAILED", map[string]any{"path": s.path})
	}
	s.dirty = false
	return nil
}

// ResetAllAnswers clears scenario and project answers and marks the store
// dirty.
func (s *Store) ResetAllAnswers() error {
	s.doc.Scenario = make(map[string]any)
	s.doc.Projects = make(map[string]map[string]any)
	s.dirty = true
	return nil
}
