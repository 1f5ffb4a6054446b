package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

// stubArchiver records what was archived without touching disk.
type stubArchiver struct {
	rules        []types.ScopedRule
	hypotheses   []types.Hypothesis
	interactions []types.InteractionLog
}

func (s *stubArchiver) ArchiveRule(r types.ScopedRule, reason string) (int, error) {
	s.rules = append(s.rules, r)
	return 1, nil
}

func (s *stubArchiver) ArchiveHypothesis(h types.Hypothesis, reason string) (int, error) {
	s.hypotheses = append(s.hypotheses, h)
	return 1, nil
}

func (s *stubArchiver) ArchiveInteractions(logs []types.InteractionLog) (int, error) {
	s.interactions = append(s.interactions, logs...)
	return len(logs), nil
}

func TestPruneScopedRulesLocked_NeverPrunesAboveConfidenceFloor(t *testing.T) {
	k := New(WithMaxRules(3))
	arc := &stubArchiver{}
	k.archiver = arc

	// All above the 0.3 floor: none should be eligible regardless of rank.
	_, _ = k.AddScopedRule(types.ScopedRule{Content: "a", Confidence: 0.9, Weight: 0.1})
	_, _ = k.AddScopedRule(types.ScopedRule{Content: "b", Confidence: 0.9, Weight: 0.2})
	id3, _ := k.AddScopedRule(types.ScopedRule{Content: "c", Confidence: 0.9, Weight: 0.3})
	_ = id3

	k.lock()
	k.pruneScopedRulesLocked()
	k.unlock()

	require.Len(t, k.rules, 3)
	require.Empty(t, arc.rules)
}

func TestPruneScopedRulesLocked_EvictsLowestWeightTimesConfidenceBelowFloor(t *testing.T) {
	k := New()
	arc := &stubArchiver{}
	k.archiver = arc

	for i := 0; i < 10; i++ {
		_, _ = k.AddScopedRule(types.ScopedRule{Content: "below-floor", Confidence: 0.1, Weight: 1})
	}

	k.lock()
	k.pruneScopedRulesLocked()
	k.unlock()

	require.Len(t, k.rules, 9) // 10% of 10 = 1 pruned
	require.Len(t, arc.rules, 1)
}

func TestPruneContextNodesLocked_KeepsNodesWithChildren(t *testing.T) {
	k := New()
	parentID, _ := k.AddContextNode(types.ContextNode{Type: types.NodeDomain, Name: "backend"})
	_, _ = k.AddContextNode(types.ContextNode{Type: types.NodeLanguage, Name: "go", ParentID: parentID})

	k.lock()
	k.pruneContextNodesLocked()
	k.unlock()

	_, ok := k.GetContextNode(parentID)
	require.True(t, ok)
}

func TestPruneContextNodesLocked_DropsUntargetedLeaf(t *testing.T) {
	k := New()
	leafID, _ := k.AddContextNode(types.ContextNode{Type: types.NodeLanguage, Name: "cobol"})

	k.lock()
	k.pruneContextNodesLocked()
	k.unlock()

	_, ok := k.GetContextNode(leafID)
	require.False(t, ok)
}

func TestPruneContextNodesLocked_KeepsNodeTargetedByRule(t *testing.T) {
	k := New()
	leafID, _ := k.AddContextNode(types.ContextNode{Type: types.NodeLanguage, Name: "go"})
	_, _ = k.AddScopedRule(types.ScopedRule{Content: "x", Confidence: 0.9, Weight: 1, TargetNode: leafID})

	k.lock()
	k.pruneContextNodesLocked()
	k.unlock()

	_, ok := k.GetContextNode(leafID)
	require.True(t, ok)
}

func TestPruneHypothesesLocked_EvictsAtLeastOne(t *testing.T) {
	k := New()
	arc := &stubArchiver{}
	k.archiver = arc

	_, _ = k.AddHypothesis(types.Hypothesis{Content: "only one", Confidence: 0.3})

	k.lock()
	k.pruneHypothesesLocked()
	k.unlock()

	require.Empty(t, k.hypotheses)
	require.Len(t, arc.hypotheses, 1)
}

func TestAddScopedRule_TriggersPruneWhenBoundReached(t *testing.T) {
	k := New(WithMaxRules(10))

	for i := 0; i < 10; i++ {
		_, err := k.AddScopedRule(types.ScopedRule{Content: "below-floor", Confidence: 0.1, Weight: 1})
		require.NoError(t, err)
	}

	// The bound is reached (10 >= 10): pruning should evict 10% (one
	// rule) before the eleventh insert, making room without an error.
	_, err := k.AddScopedRule(types.ScopedRule{Content: "new", Confidence: 0.9, Weight: 1})
	require.NoError(t, err)
}
