package kernel

import (
	"sort"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/types"
)

// QueryScopedRules returns rules whose ScopePath is a case-insensitive
// ordered prefix of activeContext (the anti-context-collapse
// guarantee: rules from unrelated scopes are never returned together).
// SHADOW-state rules are excluded — they are reachable only through
// ShadowPredict/ShadowValidate, never through the general query used
// by the Injector. If query is non-empty, scores are boosted by cosine
// similarity between its embedding and each rule's. Results are sorted
// descending by score, ties broken by LastActivated descending then
// ID, and truncated to topK (0 means unlimited).
func (k *Kernel) QueryScopedRules(activeContext []string, query string, topK int) []types.ScopedRule {
	k.lock()
	var queryEmb []float64
	if query != "" {
		queryEmb = k.emb.Embed(query)
	}
	candidates := make([]types.ScopedRule, 0, len(k.rules))
	for _, r := range k.rules {
		if r.State == types.StateShadow {
			continue
		}
		if !isPrefixScope(r.ScopePath, activeContext) {
			continue
		}
		candidates = append(candidates, *r)
	}
	k.unlock()

	scored := make([]scoredRule, len(candidates))
	for i, r := range candidates {
		score := r.Weight * r.Confidence
		if queryEmb != nil {
			score *= 1 + embedder.Cosine(queryEmb, r.Embedding)
		}
		scored[i] = scoredRule{rule: r, score: score}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].rule.LastActivated.Equal(scored[j].rule.LastActivated) {
			return scored[i].rule.LastActivated.After(scored[j].rule.LastActivated)
		}
		return scored[i].rule.ID < scored[j].rule.ID
	})

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}

	out := make([]types.ScopedRule, len(scored))
	for i, s := range scored {
		out[i] = s.rule
	}
	return out
}

type scoredRule struct {
	rule  types.ScopedRule
	score float64
}

// QueryContextNodes returns nodes matching an optional NodeType filter
// and an optional case-insensitive name substring.
func (k *Kernel) QueryContextNodes(nodeType types.NodeType, nameSubstring string) []types.ContextNode {
	k.lock()
	defer k.unlock()

	lowerSub := lowerASCII(nameSubstring)
	var out []types.ContextNode
	for _, n := range k.nodes {
		if nodeType != "" && n.Type != nodeType {
			continue
		}
		if lowerSub != "" && !containsASCII(lowerASCII(n.Name), lowerSub) {
			continue
		}
		out = append(out, *n)
	}
	return out
}

func containsASCII(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
