package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

func TestAddScopedRule_DerivesStateFromConfidence(t *testing.T) {
	k := New()
	id, err := k.AddScopedRule(types.ScopedRule{Content: "prefers tabs", Confidence: 0.9, Weight: 1})
	require.NoError(t, err)

	r, ok := k.GetScopedRule(id)
	require.True(t, ok)
	require.Equal(t, types.StateEstablished, r.State)
}

func TestAddScopedRule_LastActivatedDefaultsToNow(t *testing.T) {
	k := New()
	id, err := k.AddScopedRule(types.ScopedRule{Content: "x", Confidence: 0.5})
	require.NoError(t, err)

	r, _ := k.GetScopedRule(id)
	require.WithinDuration(t, time.Now(), r.LastActivated, time.Second)
}

func TestMutateScopedRule_RederivesState(t *testing.T) {
	k := New()
	id, _ := k.AddScopedRule(types.ScopedRule{Content: "x", Confidence: 0.5})

	ok := k.MutateScopedRule(id, func(r *types.ScopedRule) { r.Confidence = 0.95 })
	require.True(t, ok)

	r, _ := k.GetScopedRule(id)
	require.Equal(t, types.StateEstablished, r.State)
}

func TestMutateScopedRule_UnknownIDReturnsFalse(t *testing.T) {
	k := New()
	require.False(t, k.MutateScopedRule("missing", func(r *types.ScopedRule) {}))
}

func TestRemoveScopedRule_Deletes(t *testing.T) {
	k := New()
	id, _ := k.AddScopedRule(types.ScopedRule{Content: "x", Confidence: 0.5})
	k.RemoveScopedRule(id)

	_, ok := k.GetScopedRule(id)
	require.False(t, ok)
}

func TestIsPrefixScope(t *testing.T) {
	tests := []struct {
		name   string
		prefix []string
		path   []string
		want   bool
	}{
		{"empty prefix matches everything", nil, []string{"backend", "go"}, true},
		{"exact match", []string{"backend", "go"}, []string{"backend", "go"}, true},
		{"proper prefix", []string{"backend"}, []string{"backend", "go"}, true},
		{"case insensitive", []string{"Backend"}, []string{"backend", "go"}, true},
		{"longer prefix than path", []string{"backend", "go", "testing"}, []string{"backend", "go"}, false},
		{"diverging path", []string{"frontend"}, []string{"backend", "go"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isPrefixScope(tt.prefix, tt.path))
		})
	}
}

func TestAddGoal_DefaultsPriorityAndHalfLife(t *testing.T) {
	k := New()
	id, err := k.AddGoal(types.UserGoal{Content: "ship weekly"})
	require.NoError(t, err)

	goals := k.GetActiveGoals(nil)
	require.Len(t, goals, 1)
	require.Equal(t, id, goals[0].ID)
	require.Equal(t, 10, goals[0].Priority)
	require.Equal(t, 7.0, goals[0].HalfLifeDays)
}

func TestGetActiveGoals_ExcludesExpired(t *testing.T) {
	k := New()
	past := time.Now().Add(-time.Hour)
	_, _ = k.AddGoal(types.UserGoal{Content: "expired goal", Expiry: &past})
	_, _ = k.AddGoal(types.UserGoal{Content: "active goal"})

	goals := k.GetActiveGoals(nil)
	require.Len(t, goals, 1)
	require.Equal(t, "active goal", goals[0].Content)
}

func TestGetActiveGoals_ScopePrefixFilter(t *testing.T) {
	k := New()
	_, _ = k.AddGoal(types.UserGoal{Content: "backend goal", ScopePath: []string{"backend"}})
	_, _ = k.AddGoal(types.UserGoal{Content: "frontend goal", ScopePath: []string{"frontend"}})

	goals := k.GetActiveGoals([]string{"backend", "go"})
	require.Len(t, goals, 1)
	require.Equal(t, "backend goal", goals[0].Content)
}

func TestGetActiveGoals_SortedByDecayedPriorityDescending(t *testing.T) {
	k := New()
	_, _ = k.AddGoal(types.UserGoal{Content: "low", Priority: 5})
	_, _ = k.AddGoal(types.UserGoal{Content: "high", Priority: 20})

	goals := k.GetActiveGoals(nil)
	require.Len(t, goals, 2)
	require.Equal(t, "high", goals[0].Content)
	require.Equal(t, "low", goals[1].Content)
}

func TestGetFactsNotConflicting_ExcludesGoalOverlap(t *testing.T) {
	k := New()
	_, _ = k.AddGoal(types.UserGoal{Content: "use tabs", ScopePath: []string{"backend"}})
	_, _ = k.AddFact(types.UserFact{Content: "use tabs", ScopePath: []string{"backend"}, Confidence: 0.9})
	_, _ = k.AddFact(types.UserFact{Content: "likes dark mode", ScopePath: []string{"backend"}, Confidence: 0.5})

	facts := k.GetFactsNotConflicting([]string{"backend"})
	require.Len(t, facts, 1)
	require.Equal(t, "likes dark mode", facts[0].Content)
}
