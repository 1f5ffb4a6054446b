package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

func TestAdaptiveSocratic_HighSeverityEmitsRequest(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	_, err := k.AddGoal(types.UserGoal{
		Content:        "ship weekly",
		ScopePath:      []string{"Go"},
		Priority:       20,
		HalfLifeDays:   30,
		LastReinforced: time.Now(),
	})
	require.NoError(t, err)

	rule := types.ScopedRule{ID: "rule-1", Content: "x", Confidence: 0.9}
	signal := types.Signal{Type: types.SignalPreference, Content: "use vendored modules in Go"}

	req := c.AdaptiveSocratic(signal, rule)
	require.NotNil(t, req)
	require.Equal(t, "rule-1", req.ConflictingRule)
	require.Equal(t, types.CanonicalCollaborationOptions, req.ProposedOptions)
}

func TestAdaptiveSocratic_LowSeverityGentlyDemotes(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	rule := types.ScopedRule{Content: "x", Confidence: 0.5, ScopePath: []string{"Go"}}
	id, err := k.AddScopedRule(rule)
	require.NoError(t, err)
	before, _ := k.GetScopedRule(id)
	before.ID = id

	signal := types.Signal{Type: types.SignalPreference, Content: "use vendored modules in Go"}
	req := c.AdaptiveSocratic(signal, before)
	require.Nil(t, req)

	after, ok := k.GetScopedRule(id)
	require.True(t, ok)
	require.Less(t, after.Confidence, before.Confidence)
}

func TestAdaptiveSocratic_NoGoalsDefaultsToPriorityFiveAndDemotes(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	rule := types.ScopedRule{Content: "x", Confidence: 0.9, ScopePath: []string{"Go"}}
	id, err := k.AddScopedRule(rule)
	require.NoError(t, err)
	before, _ := k.GetScopedRule(id)
	before.ID = id

	signal := types.Signal{Type: types.SignalPreference, Content: "irrelevant content with no scope keywords"}
	req := c.AdaptiveSocratic(signal, before)
	require.Nil(t, req, "severity 5*0.9=4.5 does not exceed the 8.0 threshold")

	after, ok := k.GetScopedRule(id)
	require.True(t, ok)
	require.Less(t, after.Confidence, before.Confidence)
}
