package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

func TestShadowPredict_MatchesOverlappingScopeAndCosine(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "prefer functional options over builder structs"
	rule := types.ScopedRule{
		Content:    content,
		ScopePath:  []string{"Go", "Backend"},
		Confidence: 0.5,
		Weight:     1.0,
	}
	rule.Embedding = c.emb.Embed(content)
	id, err := k.AddScopedRule(rule)
	require.NoError(t, err)

	pred, ok := c.ShadowPredict(content, []string{"go"})
	require.True(t, ok)
	require.Equal(t, id, pred.RuleID)
	require.Equal(t, content, pred.PredictedContent)
}

func TestShadowPredict_IgnoresNonShadowRules(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "prefer functional options over builder structs"
	rule := types.ScopedRule{
		Content:    content,
		ScopePath:  []string{"Go"},
		Confidence: 0.9,
		State:      types.StateEstablished,
		Weight:     1.0,
		Embedding:  c.emb.Embed(content),
	}
	_, err := k.AddScopedRule(rule)
	require.NoError(t, err)

	_, ok := c.ShadowPredict(content, []string{"go"})
	require.False(t, ok)
}

func TestShadowPredict_NoOverlapNoMatch(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	content := "prefer functional options over builder structs"
	rule := types.ScopedRule{
		Content:    content,
		ScopePath:  []string{"Python"},
		Confidence: 0.5,
		Weight:     1.0,
		Embedding:  c.emb.Embed(content),
	}
	_, err := k.AddScopedRule(rule)
	require.NoError(t, err)

	_, ok := c.ShadowPredict(content, []string{"go"})
	require.False(t, ok)
}

func TestShadowValidate_MatchedPromotes(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	rule := types.ScopedRule{Content: "x", ScopePath: []string{"Go"}, Confidence: 0.5, Weight: 1.0}
	rule.State = types.StateForConfidence(rule.Confidence)
	id, err := k.AddScopedRule(rule)
	require.NoError(t, err)

	result, ok := c.ShadowValidate(id, "accepted", true)
	require.True(t, ok)
	require.Equal(t, "promoted", result.Action)
	require.InDelta(t, 0.7, result.NewConfidence, 0.001)
}

func TestShadowValidate_UnmatchedDemotes(t *testing.T) {
	k, c := newTestCompiler(time.Now())
	rule := types.ScopedRule{Content: "x", ScopePath: []string{"Go"}, Confidence: 0.5, Weight: 1.0}
	rule.State = types.StateForConfidence(rule.Confidence)
	id, err := k.AddScopedRule(rule)
	require.NoError(t, err)

	result, ok := c.ShadowValidate(id, "rejected", false)
	require.True(t, ok)
	require.Equal(t, "demoted", result.Action)
	require.InDelta(t, 0.4, result.NewConfidence, 0.001)
}

func TestShadowValidate_UnknownRuleReturnsFalse(t *testing.T) {
	_, c := newTestCompiler(time.Now())
	_, ok := c.ShadowValidate("does-not-exist", "accepted", true)
	require.False(t, ok)
}
