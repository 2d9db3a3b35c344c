package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineEvaluate(t *testing.T) {
	t.Run("Should return allow when no rule matches", func(t *testing.T) {
		e, err := NewEngine(&Policies{Rules: []Rule{
			{ID: "destructive", Level: LevelBlock, Match: Match{CommandPattern: []string{`rm -rf`}}},
		}})
		require.NoError(t, err)
		d := e.Evaluate(Query{Command: "echo hi"})
		assert.Equal(t, LevelAllow, d.EnforcedLevel)
		assert.Nil(t, d.Rule)
	})

	t.Run("Should match the first rule whose selectors all hold", func(t *testing.T) {
		e, err := NewEngine(&Policies{Rules: []Rule{
			{ID: "destructive", Level: LevelBlock, Match: Match{CommandPattern: []string{`rm -rf /`}}},
		}})
		require.NoError(t, err)
		d := e.Evaluate(Query{Command: "rm -rf /"})
		require.NotNil(t, d.Rule)
		assert.Equal(t, "destructive", d.Rule.ID)
		assert.Equal(t, LevelBlock, d.EnforcedLevel)
	})

	t.Run("Should downgrade a block rule to warn once acknowledged", func(t *testing.T) {
		e, err := NewEngine(&Policies{Rules: []Rule{
			{ID: "destructive", Level: LevelBlock, Match: Match{CommandPattern: []string{`rm -rf /`}}},
		}})
		require.NoError(t, err)
		e.Acknowledge("destructive")
		d := e.Evaluate(Query{Command: "rm -rf /"})
		assert.Equal(t, LevelBlock, d.Level)
		assert.Equal(t, LevelWarn, d.EnforcedLevel)
		assert.True(t, d.Acknowledged)
	})

	t.Run("Should require every provided selector to match", func(t *testing.T) {
		e, err := NewEngine(&Policies{Rules: []Rule{
			{ID: "scoped", Level: LevelWarn, Match: Match{Flow: []string{"release"}, Step: []string{"push"}}},
		}})
		require.NoError(t, err)
		d := e.Evaluate(Query{FlowID: "release", StepID: "build"})
		assert.Nil(t, d.Rule)
	})

	t.Run("Should fail construction on an invalid regex", func(t *testing.T) {
		_, err := NewEngine(&Policies{Rules: []Rule{
			{ID: "bad", Level: LevelWarn, Match: Match{CommandPattern: []string{"("}}},
		}})
		assert.Error(t, err)
	})
}

func TestEngineAcknowledge(t *testing.T) {
	t.Run("Should track acknowledgement per rule id", func(t *testing.T) {
		e, err := NewEngine(nil)
		require.NoError(t, err)
		assert.False(t, e.IsAcknowledged("x"))
		e.Acknowledge("x")
		assert.True(t, e.IsAcknowledged("x"))
	})
}
