package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mathieu007/dev-wizard-engine/engine/scenario"
	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events    []any
	notes     int
	closeErr  error
	closeCall int
}

func (r *recordingSink) Handle(_ context.Context, event any) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Note(context.Context, step.Level, string, map[string]any) {
	r.notes++
}

func (r *recordingSink) Close() error {
	r.closeCall++
	return r.closeErr
}

func TestFanoutHandle(t *testing.T) {
	t.Run("Should dispatch events to every attached sink in order", func(t *testing.T) {
		a, b := &recordingSink{}, &recordingSink{}
		f := NewFanout(a, b)

		require.NoError(t, f.Handle(context.Background(), NewEvent(TypeStepStart, "main", "s1")))

		require.Len(t, a.events, 1)
		require.Len(t, b.events, 1)
	})
}

func TestFanoutNote(t *testing.T) {
	t.Run("Should fan a note out to every attached sink", func(t *testing.T) {
		a, b := &recordingSink{}, &recordingSink{}
		f := NewFanout(a, b)

		f.Note(context.Background(), step.LevelWarning, "heads up", nil)

		assert.Equal(t, 1, a.notes)
		assert.Equal(t, 1, b.notes)
	})
}

func TestFanoutClose(t *testing.T) {
	t.Run("Should propagate the first close error without skipping later sinks", func(t *testing.T) {
		failing := &recordingSink{closeErr: errors.New("disk full")}
		other := &recordingSink{}
		f := NewFanout(failing, other)

		err := f.Close()
		assert.ErrorContains(t, err, "disk full")
		assert.Equal(t, 1, failing.closeCall)
		assert.Equal(t, 1, other.closeCall, "second sink's Close must still run")
	})
}

func TestNDJSONSink(t *testing.T) {
	t.Run("Should write one JSON object per line", func(t *testing.T) {
		var buf bytes.Buffer
		sink := NewNDJSONSink(&buf)

		require.NoError(t, sink.Handle(context.Background(), NewEvent(TypeScenarioStart, "main", "")))
		require.NoError(t, sink.Handle(context.Background(), NewEvent(TypeScenarioComplete, "main", "")))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		var decoded wizard.Event
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
		assert.Equal(t, TypeScenarioStart, decoded.Type)
	})

	t.Run("Should encode notes as a synthetic note event", func(t *testing.T) {
		var buf bytes.Buffer
		sink := NewNDJSONSink(&buf)

		sink.Note(context.Background(), step.LevelWarning, "check this", map[string]any{"flowId": "main"})

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "note", decoded["type"])
		assert.Equal(t, "check this", decoded["message"])
	})
}

func TestPolicyDecisionSink(t *testing.T) {
	t.Run("Should mirror policy.decision events into WizardState", func(t *testing.T) {
		sc := &scenario.Scenario{ID: "default", Flow: "main"}
		st := state.New(sc, "run-1")
		sink := NewPolicyDecisionSink(st)

		ev := PolicyDecisionEvent{
			Event:         NewEvent(TypePolicyDecision, "main", "deploy"),
			RuleID:        "no-force-push",
			Level:         "block",
			EnforcedLevel: "warn",
			Acknowledged:  true,
			Command:       "git push --force",
		}
		require.NoError(t, sink.Handle(context.Background(), ev))

		require.Len(t, st.PolicyDecisions, 1)
		rec := st.PolicyDecisions[0]
		assert.Equal(t, "no-force-push", rec.RuleID)
		assert.Equal(t, "warn", rec.EnforcedLevel)
		assert.True(t, rec.Acknowledged)
	})

	t.Run("Should ignore events of other types", func(t *testing.T) {
		sc := &scenario.Scenario{ID: "default", Flow: "main"}
		st := state.New(sc, "run-1")
		sink := NewPolicyDecisionSink(st)

		require.NoError(t, sink.Handle(context.Background(), NewEvent(TypeStepStart, "main", "s1")))
		assert.Empty(t, st.PolicyDecisions)
	})
}
