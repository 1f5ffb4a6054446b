package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// exactScopeMatchCosine is the similarity threshold above which a
// signal is considered to describe the same rule as an existing one in
// the same exact scope.
const exactScopeMatchCosine = 0.75

// newRuleConfidence is the starting confidence every scientific-evolve
// rule is created with (HYPOTHESIS state).
const newRuleConfidence = 0.2

// correctionRejectPenalty / preferenceValidateBoost are the fixed
// confidence deltas the reject/validate branches apply.
const (
	correctionRejectPenalty = 0.25
	preferenceValidateBoost = 0.15
)

// ScientificEvolveStats summarizes one ScientificEvolve call.
type ScientificEvolveStats struct {
	SignalsProcessed      int                          `json:"signals_processed"`
	RulesCreated          int                          `json:"rules_created"`
	RulesValidated        int                          `json:"rules_validated"`
	RulesRejected         int                          `json:"rules_rejected"`
	RulesEstablished      int                          `json:"rules_established"`
	RulesDeprecated       int                          `json:"rules_deprecated"`
	CollaborationRequests []types.CollaborationRequest `json:"collaboration_requests"`
}

// ScientificEvolve is the canonical, direct evolution pipeline: for
// each signal it either creates a new HYPOTHESIS-state rule, validates
// or rejects an existing one in the same exact scope, or — when a
// signal conflicts with an ESTABLISHED rule — emits a
// CollaborationRequest without mutating anything. Signals are processed
// in the order given; an empty signal list yields zero stats and
// leaves the kernel unchanged.
func (c *Compiler) ScientificEvolve(signals []types.Signal) ScientificEvolveStats {
	var stats ScientificEvolveStats
	for _, sig := range signals {
		stats.SignalsProcessed++
		c.scientificEvolveOne(sig, &stats)
	}
	c.updateProfile(signals)
	c.updateStyle(signals)
	return stats
}

func (c *Compiler) scientificEvolveOne(sig types.Signal, stats *ScientificEvolveStats) {
	scopePath, targetNode := DetectScope(sig.Content, sig.Metadata)
	sigEmb := c.emb.Embed(sig.Content)

	existing, found := c.findExactScopeMatch(scopePath, sigEmb)
	if !found {
		c.createRule(sig, scopePath, targetNode, sigEmb)
		stats.RulesCreated++
		return
	}

	conflicts := existing.State == types.StateEstablished &&
		normalizeContent(existing.Content) != normalizeContent(sig.Content) &&
		sig.Type != types.SignalCorrection && sig.Type != types.SignalAversion
	if conflicts {
		req := types.CollaborationRequest{
			ID:              uuid.NewString(),
			TriggerSignal:   sig,
			ConflictingRule: existing.ID,
			Reason:          fmt.Sprintf("new signal conflicts with established rule %q", existing.Content),
			ProposedOptions: append([]string(nil), types.CanonicalCollaborationOptions...),
			CreatedAt:       c.now(),
		}
		stats.CollaborationRequests = append(stats.CollaborationRequests, req)
		return
	}

	if sig.Type == types.SignalCorrection {
		var becameDeprecated bool
		c.kernel.MutateScopedRule(existing.ID, func(r *types.ScopedRule) {
			r.Reject(correctionRejectPenalty, c.now())
			becameDeprecated = r.State == types.StateDeprecated
		})
		stats.RulesRejected++
		if becameDeprecated {
			stats.RulesDeprecated++
		}
		return
	}

	var becameEstablished bool
	c.kernel.MutateScopedRule(existing.ID, func(r *types.ScopedRule) {
		wasEstablished := r.State == types.StateEstablished
		r.Validate(preferenceValidateBoost, c.now())
		becameEstablished = !wasEstablished && r.State == types.StateEstablished
	})
	stats.RulesValidated++
	if becameEstablished {
		stats.RulesEstablished++
	}
}

// findExactScopeMatch looks for a rule whose scope path exactly
// (case-sensitively) equals scopePath and whose embedding is within
// exactScopeMatchCosine of sigEmb. Candidates are scanned oldest-first
// (CreatedAt, then ID) so that when a signal clears the threshold
// against more than one coexisting rule, the same rule wins on every
// run regardless of map iteration order.
func (c *Compiler) findExactScopeMatch(scopePath []string, sigEmb []float64) (types.ScopedRule, bool) {
	rules := c.kernel.AllScopedRules()
	sortRulesOldestFirst(rules)
	for _, r := range rules {
		if !equalScopePath(r.ScopePath, scopePath) {
			continue
		}
		if embedder.Cosine(sigEmb, r.Embedding) > exactScopeMatchCosine {
			return r, true
		}
	}
	return types.ScopedRule{}, false
}

func (c *Compiler) createRule(sig types.Signal, scopePath []string, targetNode string, sigEmb []float64) {
	now := c.now()
	rule := types.ScopedRule{
		Content:    sig.Content,
		ScopePath:  scopePath,
		TargetNode: targetNode,
		SourceNode: "user",
		Relation:   types.RelationForSignalType(sig.Type),
		Confidence: newRuleConfidence,
		Weight:     1.0,
		Embedding:  sigEmb,
		CreatedAt:  now,
	}
	id, err := c.kernel.AddScopedRule(rule)
	if err != nil {
		logging.Get(logging.CategoryCompiler).Warnf("creating rule for scope %v: %v", scopePath, err)
		return
	}
	logging.Get(logging.CategoryCompiler).Debugf("created rule %s scope=%v", id, scopePath)
}
