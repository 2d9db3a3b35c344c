package analytics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeEvent(st *state.WizardState, failed bool) telemetry.ScenarioCompleteEvent {
	return telemetry.ScenarioCompleteEvent{
		Event:  telemetry.NewEvent(telemetry.TypeScenarioComplete, "", ""),
		State:  st,
		Failed: failed,
	}
}

func TestWriterHandle(t *testing.T) {
	t.Run("Should write workflow and integration-timing reports on success", func(t *testing.T) {
		dir := t.TempDir()
		st := &state.WizardState{
			FlowRuns:           []state.FlowRun{{FlowID: "main", DurationMs: 120}},
			IntegrationTimings: []state.IntegrationTiming{{FlowID: "main", StepID: "deploy", Command: "make deploy"}},
		}
		w := NewWriter(dir, "default", "run-1", false)

		require.NoError(t, w.Handle(context.Background(), completeEvent(st, false)))

		latest, err := os.ReadFile(filepath.Join(dir, ".reports", "workflows-latest.json"))
		require.NoError(t, err)
		var rec WorkflowRunRecord
		require.NoError(t, json.Unmarshal(latest, &rec))
		assert.Equal(t, "run-1", rec.RunID)
		require.Len(t, rec.FlowRuns, 1)

		timings, err := os.ReadFile(filepath.Join(dir, ".reports", "integration-timings-latest.json"))
		require.NoError(t, err)
		var timingRec IntegrationTimingRecord
		require.NoError(t, json.Unmarshal(timings, &timingRec))
		require.Len(t, timingRec.Timings, 1)
		assert.Equal(t, "make deploy", timingRec.Timings[0].Command)
	})

	t.Run("Should merge a release-email-status.json when present", func(t *testing.T) {
		dir := t.TempDir()
		reportsDir := filepath.Join(dir, ".reports")
		require.NoError(t, os.MkdirAll(reportsDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(reportsDir, "release-email-status.json"),
			[]byte(`{"sent":true,"address":"team@example.com"}`), 0o644))

		w := NewWriter(dir, "default", "run-1", false)
		require.NoError(t, w.Handle(context.Background(), completeEvent(&state.WizardState{}, false)))

		latest, err := os.ReadFile(filepath.Join(reportsDir, "workflows-latest.json"))
		require.NoError(t, err)
		var rec WorkflowRunRecord
		require.NoError(t, json.Unmarshal(latest, &rec))
		require.NotNil(t, rec.EmailStatus)
		assert.True(t, rec.EmailStatus.Sent)
		assert.Equal(t, "team@example.com", rec.EmailStatus.Address)
	})

	t.Run("Should skip writing on a dry run", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "default", "run-1", true)
		require.NoError(t, w.Handle(context.Background(), completeEvent(&state.WizardState{}, false)))
		_, err := os.Stat(filepath.Join(dir, ".reports", "workflows-latest.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Should skip writing when the run failed", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "default", "run-1", false)
		require.NoError(t, w.Handle(context.Background(), completeEvent(&state.WizardState{}, true)))
		_, err := os.Stat(filepath.Join(dir, ".reports", "workflows-latest.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Should ignore non-completion events", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "default", "run-1", false)
		require.NoError(t, w.Handle(context.Background(), telemetry.NewEvent(telemetry.TypeStepStart, "main", "s1")))
		_, err := os.Stat(filepath.Join(dir, ".reports"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestAppendRingCapacity(t *testing.T) {
	t.Run("Should cap history at 50 entries, evicting the oldest", func(t *testing.T) {
		dir := t.TempDir()
		reportsDir := filepath.Join(dir, ".reports")

		for i := 0; i < ringCapacity+5; i++ {
			rec := WorkflowRunRecord{RunID: time.Now().Format("150405") + string(rune('a'+i%26)), RecordedAt: time.Now()}
			require.NoError(t, appendRing(reportsDir, "workflows", rec))
		}

		data, err := os.ReadFile(filepath.Join(reportsDir, "workflows-history.json"))
		require.NoError(t, err)
		var history []WorkflowRunRecord
		require.NoError(t, json.Unmarshal(data, &history))
		assert.Len(t, history, ringCapacity)
	})
}
