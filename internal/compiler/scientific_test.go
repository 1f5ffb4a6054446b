package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/kernel"
	"github.com/splk-dev/splk/internal/types"
)

func newTestCompiler(now time.Time) (*kernel.Kernel, *Compiler) {
	emb := embedder.New()
	k := kernel.New(kernel.WithEmbedder(emb))
	c := New(k, WithEmbedder(emb), withClock(func() time.Time { return now }))
	return k, c
}

func TestScientificEvolve_NoMatchCreatesHypothesisRule(t *testing.T) {
	_, c := newTestCompiler(time.Now())
	stats := c.ScientificEvolve([]types.Signal{
		{Type: types.SignalPreference, Content: "I prefer tabs over spaces in Go", Confidence: 0.6},
	})
	require.Equal(t, 1, stats.SignalsProcessed)
	require.Equal(t, 1, stats.RulesCreated)
	require.Empty(t, stats.CollaborationRequests)
}

func TestScientificEvolve_RepeatedSignalValidatesExistingRule(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "I prefer tabs over spaces in Go"
	stats := c.ScientificEvolve([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})
	require.Equal(t, 1, stats.RulesCreated)

	stats = c.ScientificEvolve([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})
	require.Equal(t, 1, stats.RulesValidated)

	rules := k.AllScopedRules()
	require.Len(t, rules, 1)
	require.InDelta(t, 0.35, rules[0].Confidence, 0.01)
}

func TestScientificEvolve_CorrectionRejectsExistingRule(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "I prefer tabs over spaces in Go"
	c.ScientificEvolve([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})

	stats := c.ScientificEvolve([]types.Signal{{Type: types.SignalCorrection, Content: content, Confidence: 0.6}})
	require.Equal(t, 1, stats.RulesRejected)

	rules := k.AllScopedRules()
	require.Len(t, rules, 1)
	require.InDelta(t, 0.0, rules[0].Confidence, 0.01)
	require.Equal(t, types.StateDeprecated, rules[0].State)
}

func TestScientificEvolve_EstablishedConflictEmitsCollaborationRequest(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "use four spaces for indentation in Python"
	c.ScientificEvolve([]types.Signal{{Type: types.SignalPreference, Content: content, Confidence: 0.6}})

	// Force the rule to ESTABLISHED directly, as repeated validation would.
	rules := k.AllScopedRules()
	require.Len(t, rules, 1)
	id := rules[0].ID
	k.MutateScopedRule(id, func(r *types.ScopedRule) {
		r.Confidence = 0.9
		r.State = types.StateForConfidence(r.Confidence)
	})

	stats := c.ScientificEvolve([]types.Signal{
		{Type: types.SignalPreference, Content: "use two spaces for indentation in Python", Confidence: 0.6},
	})
	require.Len(t, stats.CollaborationRequests, 1)
	require.Equal(t, id, stats.CollaborationRequests[0].ConflictingRule)
	require.Equal(t, types.CanonicalCollaborationOptions, stats.CollaborationRequests[0].ProposedOptions)

	rule, ok := k.GetScopedRule(id)
	require.True(t, ok)
	require.Equal(t, 0.9, rule.Confidence, "collaboration request must not mutate the rule")
}

func TestScientificEvolve_OldestRuleWinsWhenTwoMatch(t *testing.T) {
	now := time.Now()
	k, c := newTestCompiler(now)
	content := "I prefer tabs over spaces in Go"
	emb := c.emb.Embed(content)

	// Two coexisting rules in the same scope whose embeddings both clear
	// the match threshold against the incoming signal.
	_, err := k.AddScopedRule(types.ScopedRule{
		ID: "rule-old", Content: content, ScopePath: []string{"Go"},
		Confidence: 0.5, Weight: 1.0, Embedding: emb, CreatedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = k.AddScopedRule(types.ScopedRule{
		ID: "rule-new", Content: content, ScopePath: []string{"Go"},
		Confidence: 0.5, Weight: 1.0, Embedding: emb, CreatedAt: now,
	})
	require.NoError(t, err)

	stats := c.ScientificEvolve([]types.Signal{
		{Type: types.SignalPreference, Content: content, Confidence: 0.6},
	})
	require.Equal(t, 1, stats.RulesValidated)

	older, _ := k.GetScopedRule("rule-old")
	newer, _ := k.GetScopedRule("rule-new")
	require.Equal(t, 1, older.ValidationCount, "the oldest matching rule must receive the validation")
	require.Equal(t, 0, newer.ValidationCount)
}
