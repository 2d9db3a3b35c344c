// Package checkpoint persists atomic WizardState snapshots under
// <repoRoot>/.reports/runs/<runId>/{state.json,metadata.json}, guarded by
// github.com/gofrs/flock the way the teacher serializes concurrent access
// to its own on-disk state directories. File I/O runs through an afero.Fs
// (defaulting to the real OS filesystem) so callers can swap in
// afero.NewMemMapFs() for hermetic tests, the way the teacher's release
// orchestrator tests back real filesystem code with an in-memory one.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
)

// listConcurrency bounds how many metadata.json files List reads in parallel.
const listConcurrency = 8

// Status is a checkpoint's lifecycle tag.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Metadata is metadata.json's shape.
type Metadata struct {
	ID            string    `json:"id"`
	ScenarioID    string    `json:"scenarioId"`
	ScenarioLabel string    `json:"scenarioLabel,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Status        Status    `json:"status"`
	DryRun        bool      `json:"dryRun"`
	FlowCursor    string    `json:"flowCursor"`
	StepCursor    string    `json:"stepCursor"`
	Phase         string    `json:"phase,omitempty"`
	PostRunCursor int       `json:"postRunCursor,omitempty"`
}

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitize(s string) string {
	return sanitizeRe.ReplaceAllString(s, "-")
}

// NewRunID derives a runId of the form YYYYMMDD-HHMMSS-<sanitized scenarioId>.
func NewRunID(now time.Time, scenarioID string) string {
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), sanitize(scenarioID))
}

// Store manages checkpoint writes/reads under repoRoot/.reports/runs.
type Store struct {
	fs        afero.Fs
	repoRoot  string
	interval  int
	retention int
	counter   int
}

// Options configures a Store.
type Options struct {
	// Interval batches writes by step count when > 0; 0/1 writes every step.
	Interval int
	// Retention keeps at most this many non-current runs; 0 disables pruning.
	Retention int
	// Fs backs all checkpoint file I/O; nil defaults to the OS filesystem.
	Fs afero.Fs
}

func NewStore(repoRoot string, opts Options) *Store {
	interval := opts.Interval
	if interval <= 0 {
		interval = 1
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, repoRoot: repoRoot, interval: interval, retention: opts.Retention}
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.repoRoot, ".reports", "runs", runID)
}

// Save writes state.json and metadata.json, subject to the configured
// interval (always writes when force is true, e.g. from Finalize).
func (s *Store) Save(runID string, st *state.WizardState, meta *Metadata, force bool) error {
	s.counter++
	if !force && s.counter%s.interval != 0 {
		return nil
	}
	return s.writeNow(runID, st, meta)
}

func (s *Store) writeNow(runID string, st *state.WizardState, meta *Metadata) error {
	dir := s.runDir(runID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"runId": runID})
	}
	// flock locks real inodes; an in-memory afero.Fs has none, so the lock
	// is best-effort and only meaningfully guards the OS-backed default.
	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err == nil && locked {
		defer lock.Unlock()
	}

	meta.UpdatedAt = time.Now().UTC()
	if err := s.writeAtomicJSON(filepath.Join(dir, "state.json"), st); err != nil {
		return core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"runId": runID, "file": "state.json"})
	}
	if err := s.writeAtomicJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"runId": runID, "file": "metadata.json"})
	}
	return nil
}

// Finalize forces a final write with the given status and prunes retention.
func (s *Store) Finalize(runID string, st *state.WizardState, meta *Metadata, status Status) error {
	meta.Status = status
	if err := s.writeNow(runID, st, meta); err != nil {
		return err
	}
	return s.prune(runID)
}

func (s *Store) prune(currentRunID string) error {
	if s.retention <= 0 {
		return nil
	}
	list, err := s.List("")
	if err != nil {
		return err
	}
	var others []Metadata
	for _, m := range list {
		if m.ID != currentRunID {
			others = append(others, m)
		}
	}
	if len(others) <= s.retention {
		return nil
	}
	for _, m := range others[s.retention:] {
		if err := s.fs.RemoveAll(s.runDir(m.ID)); err != nil {
			return core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"runId": m.ID})
		}
	}
	return nil
}

// Loaded is the rehydrated checkpoint pair.
type Loaded struct {
	State    *state.WizardState
	Metadata *Metadata
}

// Load reads both files for runID, decoding timestamps back into time.Time
// and a recorded error into state.RecordedError ({name,message,stack}); it
// does not convert that error into a core.Error.
func (s *Store) Load(runID string) (*Loaded, error) {
	dir := s.runDir(runID)
	var st state.WizardState
	if err := s.readJSON(filepath.Join(dir, "state.json"), &st); err != nil {
		return nil, core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"runId": runID, "file": "state.json"})
	}
	var meta Metadata
	if err := s.readJSON(filepath.Join(dir, "metadata.json"), &meta); err != nil {
		return nil, core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"runId": runID, "file": "metadata.json"})
	}
	return &Loaded{State: &st, Metadata: &meta}, nil
}

// List enumerates runs under .reports/runs with a valid metadata.json,
// optionally filtered by scenarioID, sorted by UpdatedAt DESC then id ASC.
// Each run's metadata.json is read concurrently (bounded by
// listConcurrency), the way the teacher's review orchestrator fans its
// per-agent work out across an errgroup.
func (s *Store) List(scenarioID string) ([]Metadata, error) {
	root := filepath.Join(s.repoRoot, ".reports", "runs")
	entries, err := afero.ReadDir(s.fs, root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.NewError(err, "CHECKPOINT_IO_FAILED", map[string]any{"path": root})
	}

	metas := make([]*Metadata, len(entries))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(listConcurrency)
	for i, e := range entries {
		if !e.IsDir() {
			continue
		}
		i, e := i, e
		g.Go(func() error {
			var meta Metadata
			metaPath := filepath.Join(root, e.Name(), "metadata.json")
			if err := s.readJSON(metaPath, &meta); err != nil {
				return nil
			}
			metas[i] = &meta
			return nil
		})
	}
	_ = g.Wait()

	var out []Metadata
	for _, m := range metas {
		if m != nil {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if scenarioID == "" {
		return out, nil
	}
	var filtered []Metadata
	for _, m := range out {
		if m.ScenarioID == scenarioID {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

func (s *Store) writeAtomicJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path)
}

func (s *Store) readJSON(path string, v any) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Create is a package-level convenience alias for NewStore, so a caller
// that only needs one-off Load/List access doesn't have to name the type.
func Create(repoRoot string, opts Options) *Store {
	return NewStore(repoRoot, opts)
}

// Load rehydrates one run's checkpoint under repoRoot without the caller
// holding onto a Store.
func Load(repoRoot, runID string) (*Loaded, error) {
	return NewStore(repoRoot, Options{}).Load(runID)
}

// List enumerates runs under repoRoot without the caller holding onto a
// Store.
func List(repoRoot, scenarioID string) ([]Metadata, error) {
	return NewStore(repoRoot, Options{}).List(scenarioID)
}
