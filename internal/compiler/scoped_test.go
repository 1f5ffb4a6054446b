package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

func TestEvolveScoped_LowConfidenceSignalCreatesNoHypothesis(t *testing.T) {
	_, c := newTestCompiler(time.Now())
	report := c.EvolveScoped([]types.Signal{
		{Type: types.SignalPreference, Content: "use TypeScript for all new frontend code", Confidence: 0.2},
	})
	require.Equal(t, 0, report.HypothesesCreated)
}

func TestEvolveScoped_FourIdenticalSignalsPromoteToRule(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "use TypeScript for all new frontend code"

	report := c.EvolveScoped([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})
	require.Equal(t, 1, report.HypothesesCreated)
	require.Len(t, k.AllHypotheses(), 1)

	for i := 0; i < 3; i++ {
		report = c.EvolveScoped([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})
	}

	require.Equal(t, 1, report.HypothesesPromoted)
	require.Empty(t, k.AllHypotheses())

	rules := k.AllScopedRules()
	require.Len(t, rules, 1)
	require.Equal(t, 0.8, rules[0].Confidence)
	require.Equal(t, types.StateEstablished, rules[0].State)
}

func TestEvolveScoped_CorrectionWithNegationRejectsHypothesis(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "use TypeScript for all new frontend code"
	c.EvolveScoped([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})
	require.Len(t, k.AllHypotheses(), 1)
	origID := k.AllHypotheses()[0].ID

	report := c.EvolveScoped([]types.Signal{
		{Type: types.SignalCorrection, Content: "don't use TypeScript for all new frontend code", Confidence: 0.6},
	})
	require.Equal(t, 1, report.HypothesesRejected)

	// The correction validated nothing, so it also seeds a hypothesis of its own.
	require.Len(t, k.AllHypotheses(), 2)
	orig, ok := k.GetHypothesis(origID)
	require.True(t, ok)
	require.Equal(t, 1, orig.Rejections)
}

func TestEvolveScoped_CorrectionContradictsMatchingRule(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	rule := types.ScopedRule{
		Content:    "use tabs for indentation in Go",
		ScopePath:  []string{"Go"},
		Confidence: 0.9,
		Weight:     1.0,
	}
	rule.Embedding = c.emb.Embed(rule.Content)
	id, err := k.AddScopedRule(rule)
	require.NoError(t, err)
	before, _ := k.GetScopedRule(id)

	c.EvolveScoped([]types.Signal{
		{Type: types.SignalCorrection, Content: "don't use tabs for indentation in Go", Confidence: 0.6},
	})

	after, ok := k.GetScopedRule(id)
	require.True(t, ok)
	require.Less(t, after.Confidence, before.Confidence)
}

func TestEvolveScoped_HypothesisExpiresAfterWindow(t *testing.T) {
	start := time.Now()
	k, c := newTestCompiler(start)
	c.EvolveScoped([]types.Signal{
		{Type: types.SignalPreference, Content: "use TypeScript for all new frontend code", Confidence: 0.6},
	})
	require.Len(t, k.AllHypotheses(), 1)

	future := start.Add(25 * time.Hour)
	c2 := New(k, WithEmbedder(c.emb), withClock(func() time.Time { return future }))
	report := c2.EvolveScoped([]types.Signal{
		{Type: types.SignalStyle, Content: "completely unrelated filler content here", Confidence: 0.05},
	})
	require.Equal(t, 1, report.HypothesesExpired)
	require.Empty(t, k.AllHypotheses())
}
