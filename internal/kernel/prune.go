package kernel

import (
	"sort"

	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// pruneBottomFraction is the share of entities considered for eviction
// when a resource bound is approached.
const pruneBottomFraction = 0.10

// minKeptRuleConfidence is the floor below which a rule is never
// pruned, regardless of how it ranks.
const minKeptRuleConfidence = 0.3

// pruneScopedRulesLocked evicts the bottom 10% of rules by
// weight*confidence, skipping any rule whose confidence is at or above
// minKeptRuleConfidence. Pruned rules are archived with reason
// "pruned" before deletion. Caller must already hold the lock.
func (k *Kernel) pruneScopedRulesLocked() {
	candidates := make([]*types.ScopedRule, 0, len(k.rules))
	for _, r := range k.rules {
		if r.Confidence < minKeptRuleConfidence {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Weight*candidates[i].Confidence < candidates[j].Weight*candidates[j].Confidence
	})

	n := int(float64(len(k.rules)) * pruneBottomFraction)
	if n > len(candidates) {
		n = len(candidates)
	}
	for _, r := range candidates[:n] {
		if k.archiver != nil {
			if _, err := k.archiver.ArchiveRule(*r, "pruned"); err != nil {
				logging.KernelWarn("archiving pruned rule %s: %v", r.ID, err)
			}
		}
		delete(k.rules, r.ID)
	}
}

// pruneContextNodesLocked drops nodes that are both childless and
// untargeted by any rule; nodes with children or referenced by a rule
// are kept regardless of weight. Caller must already hold the lock.
func (k *Kernel) pruneContextNodesLocked() {
	targeted := make(map[string]bool, len(k.rules))
	for _, r := range k.rules {
		targeted[r.TargetNode] = true
	}
	for id, n := range k.nodes {
		if len(n.ChildrenIDs) > 0 {
			continue
		}
		if targeted[id] || targeted[n.Name] {
			continue
		}
		delete(k.nodes, id)
	}
}

// pruneHypothesesLocked evicts the bottom 10% (at least one) of all
// hypotheses by confidence when the bound is reached, archiving each with reason
// "pruned". Caller must already hold the lock.
func (k *Kernel) pruneHypothesesLocked() {
	candidates := make([]*types.Hypothesis, 0, len(k.hypotheses))
	for _, h := range k.hypotheses {
		candidates = append(candidates, h)
	}
	if len(candidates) == 0 {
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Confidence < candidates[j].Confidence
	})

	n := int(float64(len(k.hypotheses)) * pruneBottomFraction)
	if n == 0 {
		n = 1
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	for _, h := range candidates[:n] {
		if k.archiver != nil {
			if _, err := k.archiver.ArchiveHypothesis(*h, "pruned"); err != nil {
				logging.KernelWarn("archiving pruned hypothesis %s: %v", h.ID, err)
			}
		}
		delete(k.hypotheses, h.ID)
	}
}
