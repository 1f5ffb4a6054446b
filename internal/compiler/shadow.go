package compiler

import (
	"strings"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/types"
)

// shadowMatchCosine is the similarity threshold a SHADOW rule's
// embedding must clear against the query to be predicted.
const shadowMatchCosine = 0.3

// Confidence deltas the shadow-validation feedback loop applies.
const (
	shadowPromoteBoost  = 0.2
	shadowDemotePenalty = 0.1
)

// ShadowPrediction is what ShadowPredict returns when a SHADOW-state
// rule matches the query.
type ShadowPrediction struct {
	RuleID           string  `json:"rule_id"`
	PredictedContent string  `json:"predicted_content"`
	Confidence       float64 `json:"confidence"`
}

// scopeOverlaps reports whether a and b share at least one element,
// compared case-insensitively.
func scopeOverlaps(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[strings.ToLower(s)] = true
	}
	for _, s := range a {
		if set[strings.ToLower(s)] {
			return true
		}
	}
	return false
}

// ShadowPredict scans rules in SHADOW state whose scope overlaps scope
// (any element in common, case-insensitive) and whose embedding
// exceeds shadowMatchCosine similarity to the embedded query, returning
// the oldest such match (CreatedAt, then ID, stable across map
// iteration orders). It graduates rules silently: callers feed the
// outcome back through ShadowValidate without ever surfacing the
// prediction to the user as a collaboration prompt.
func (c *Compiler) ShadowPredict(query string, scope []string) (ShadowPrediction, bool) {
	queryEmb := c.emb.Embed(query)
	rules := c.kernel.AllScopedRules()
	sortRulesOldestFirst(rules)
	for _, r := range rules {
		if r.State != types.StateShadow {
			continue
		}
		if !scopeOverlaps(r.ScopePath, scope) {
			continue
		}
		if embedder.Cosine(queryEmb, r.Embedding) > shadowMatchCosine {
			return ShadowPrediction{
				RuleID:           r.ID,
				PredictedContent: r.Content,
				Confidence:       r.Confidence,
			}, true
		}
	}
	return ShadowPrediction{}, false
}

// ShadowValidationResult reports the outcome of feeding an observed
// user action back into a shadow-predicted rule.
type ShadowValidationResult struct {
	Action        string          `json:"action"`
	NewConfidence float64         `json:"new_confidence"`
	NewState      types.RuleState `json:"new_state"`
}

// ShadowValidate closes the silent graduation loop: matched=true
// reinforces the rule (action "promoted"), matched=false gently
// penalizes it (action "demoted"). userAction is recorded by callers
// for their own audit trails; only whether the prediction matched what
// the user actually did determines the confidence delta.
func (c *Compiler) ShadowValidate(ruleID string, userAction string, matched bool) (ShadowValidationResult, bool) {
	_ = userAction
	var result ShadowValidationResult
	ok := c.kernel.MutateScopedRule(ruleID, func(r *types.ScopedRule) {
		if matched {
			r.Validate(shadowPromoteBoost, c.now())
			result.Action = "promoted"
		} else {
			r.Reject(shadowDemotePenalty, c.now())
			result.Action = "demoted"
		}
		result.NewConfidence = r.Confidence
		result.NewState = r.State
	})
	if !ok {
		return ShadowValidationResult{}, false
	}
	return result, true
}
