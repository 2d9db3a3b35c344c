package checkpoint

import (
	"testing"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState() *state.WizardState {
	sc := &scenario.Scenario{ID: "default", Flow: "main"}
	st := state.New(sc, "run-1")
	st.StepCursor = "step-1"
	st.Answers["name"] = "world"
	return st
}

func TestNewRunID(t *testing.T) {
	t.Run("Should combine a timestamp and sanitized scenario id", func(t *testing.T) {
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		id := NewRunID(now, "my scenario!")
		assert.Equal(t, "20260102-030405-my-scenario-", id)
	})
}

func TestStoreSaveAndLoad(t *testing.T) {
	t.Run("Should round-trip state and metadata through disk", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir, Options{})
		st := newTestState()
		meta := &Metadata{ID: "run-1", ScenarioID: "default", Status: StatusRunning, StartedAt: st.StartedAt}

		require.NoError(t, store.Save("run-1", st, meta, true))

		loaded, err := store.Load("run-1")
		require.NoError(t, err)
		assert.Equal(t, "step-1", loaded.State.StepCursor)
		assert.Equal(t, "world", loaded.State.Answers["name"])
		assert.Equal(t, StatusRunning, loaded.Metadata.Status)
	})

	t.Run("Should round-trip state and metadata through an in-memory filesystem", func(t *testing.T) {
		store := NewStore("/repo", Options{Fs: afero.NewMemMapFs()})
		st := newTestState()
		meta := &Metadata{ID: "run-1", ScenarioID: "default", Status: StatusRunning, StartedAt: st.StartedAt}

		require.NoError(t, store.Save("run-1", st, meta, true))

		loaded, err := store.Load("run-1")
		require.NoError(t, err)
		assert.Equal(t, "step-1", loaded.State.StepCursor)
		assert.Equal(t, "world", loaded.State.Answers["name"])
	})

	t.Run("Should skip non-forced writes outside the configured interval", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir, Options{Interval: 3})
		st := newTestState()
		meta := &Metadata{ID: "run-1", ScenarioID: "default", Status: StatusRunning}

		require.NoError(t, store.Save("run-1", st, meta, false))
		require.NoError(t, store.Save("run-1", st, meta, false))
		_, err := store.Load("run-1")
		assert.Error(t, err, "expected no checkpoint written before the interval elapses")

		require.NoError(t, store.Save("run-1", st, meta, false))
		_, err = store.Load("run-1")
		assert.NoError(t, err)
	})
}

func TestStoreFinalizeAndList(t *testing.T) {
	t.Run("Should finalize with a status and list runs newest-first", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir, Options{})

		for i, id := range []string{"run-a", "run-b", "run-c"} {
			st := newTestState()
			meta := &Metadata{ID: id, ScenarioID: "default", Status: StatusRunning, UpdatedAt: time.Now().Add(time.Duration(i) * time.Second)}
			require.NoError(t, store.Finalize(id, st, meta, StatusCompleted))
		}

		list, err := store.List("")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "run-c", list[0].ID)
		assert.Equal(t, StatusCompleted, list[0].Status)
	})

	t.Run("Should list runs newest-first against an in-memory filesystem", func(t *testing.T) {
		store := NewStore("/repo", Options{Fs: afero.NewMemMapFs()})

		for i, id := range []string{"run-a", "run-b", "run-c"} {
			st := newTestState()
			meta := &Metadata{ID: id, ScenarioID: "default", Status: StatusRunning, UpdatedAt: time.Now().Add(time.Duration(i) * time.Second)}
			require.NoError(t, store.Finalize(id, st, meta, StatusCompleted))
		}

		list, err := store.List("")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "run-c", list[0].ID)
	})

	t.Run("Should prune old runs beyond retention", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir, Options{Retention: 1})

		for i, id := range []string{"run-a", "run-b", "run-c"} {
			st := newTestState()
			meta := &Metadata{ID: id, ScenarioID: "default", UpdatedAt: time.Now().Add(time.Duration(i) * time.Second)}
			require.NoError(t, store.Finalize(id, st, meta, StatusCompleted))
		}

		list, err := store.List("")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "run-c", list[0].ID)
		assert.Equal(t, "run-b", list[1].ID)
	})
}
