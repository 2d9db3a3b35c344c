// Package analytics implements the workflow analytics report writer named
// in spec.md §6 and SPEC_FULL.md §4.9: a telemetry.LogSink that, on
// scenario.complete, appends the run's flow and integration-timing data
// into two capped ring-buffer history files plus their "-latest"
// snapshots. Grounded on the checkpoint store's atomic-write idiom
// (engine/checkpoint.writeAtomicJSON) since the teacher itself has no
// direct analog for an on-disk rolling report writer.
package analytics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/telemetry"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

const ringCapacity = 50

// WorkflowRunRecord is one entry of workflows-{latest,history}.json.
type WorkflowRunRecord struct {
	RunID       string          `json:"runId"`
	ScenarioID  string          `json:"scenarioId"`
	RecordedAt  time.Time       `json:"recordedAt"`
	DryRun      bool            `json:"dryRun"`
	FlowRuns    []state.FlowRun `json:"flowRuns"`
	EmailStatus *EmailStatus    `json:"emailStatus,omitempty"`
}

// IntegrationTimingRecord is one entry of integration-timings-{latest,history}.json.
type IntegrationTimingRecord struct {
	RunID      string                   `json:"runId"`
	ScenarioID string                   `json:"scenarioId"`
	RecordedAt time.Time                `json:"recordedAt"`
	Timings    []state.IntegrationTiming `json:"timings"`
}

// EmailStatus is the optional release-email-status.json merged into the
// workflow report when present under <repoRoot>/.reports.
type EmailStatus struct {
	Sent    bool   `json:"sent"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Writer is a telemetry.LogSink that maintains the two report ring
// buffers under <repoRoot>/.reports.
type Writer struct {
	repoRoot   string
	scenarioID string
	runID      string
	dryRun     bool
}

var _ wizard.LogSink = (*Writer)(nil)

// NewWriter builds a report Writer for one run. Reports are written only
// when the run completes successfully and dryRun is false (spec.md §6).
func NewWriter(repoRoot, scenarioID, runID string, dryRun bool) *Writer {
	return &Writer{repoRoot: repoRoot, scenarioID: scenarioID, runID: runID, dryRun: dryRun}
}

func (w *Writer) Handle(_ context.Context, event any) error {
	ev, ok := event.(telemetry.ScenarioCompleteEvent)
	if !ok {
		if p, ok := event.(*telemetry.ScenarioCompleteEvent); ok {
			ev = *p
		} else {
			return nil
		}
	}
	if w.dryRun || ev.Failed || ev.State == nil {
		return nil
	}

	now := time.Now().UTC()
	if err := w.appendWorkflowReport(ev.State, now); err != nil {
		return err
	}
	if err := w.appendIntegrationTimings(ev.State, now); err != nil {
		return err
	}
	return nil
}

func (w *Writer) Note(context.Context, step.Level, string, map[string]any) {}

func (w *Writer) Close() error { return nil }

func (w *Writer) reportsDir() string {
	return filepath.Join(w.repoRoot, ".reports")
}

func (w *Writer) appendWorkflowReport(st *state.WizardState, now time.Time) error {
	rec := WorkflowRunRecord{
		RunID:      w.runID,
		ScenarioID: w.scenarioID,
		RecordedAt: now,
		DryRun:     w.dryRun,
		FlowRuns:   st.FlowRuns,
	}
	if status, ok := readEmailStatus(w.reportsDir()); ok {
		rec.EmailStatus = status
	}
	return appendRing(w.reportsDir(), "workflows", rec)
}

func (w *Writer) appendIntegrationTimings(st *state.WizardState, now time.Time) error {
	rec := IntegrationTimingRecord{
		RunID:      w.runID,
		ScenarioID: w.scenarioID,
		RecordedAt: now,
		Timings:    st.IntegrationTimings,
	}
	return appendRing(w.reportsDir(), "integration-timings", rec)
}

func readEmailStatus(dir string) (*EmailStatus, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "release-email-status.json"))
	if err != nil {
		return nil, false
	}
	var status EmailStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false
	}
	return &status, true
}

// appendRing loads "<dir>/<name>-history.json" (a capped JSON array),
// appends rec, evicts the oldest entry past ringCapacity, and writes both
// the refreshed history file and "<dir>/<name>-latest.json" atomically.
func appendRing[T any](dir, name string, rec T) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.NewError(err, "ANALYTICS_IO_FAILED", map[string]any{"dir": dir})
	}
	historyPath := filepath.Join(dir, name+"-history.json")
	latestPath := filepath.Join(dir, name+"-latest.json")

	var history []T
	if data, err := os.ReadFile(historyPath); err == nil {
		_ = json.Unmarshal(data, &history)
	}
	history = append(history, rec)
	if len(history) > ringCapacity {
		history = history[len(history)-ringCapacity:]
	}

	if err := writeAtomicJSON(historyPath, history); err != nil {
		return core.NewError(err, "ANALYTICS_IO_FAILED", map[string]any{"file": historyPath})
	}
	if err := writeAtomicJSON(latestPath, rec); err != nil {
		return core.NewError(err, "ANALYTICS_IO_FAILED", map[string]any{"file": latestPath})
	}
	return nil
}

func writeAtomicJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
