package compiler

import (
	"strings"
	"time"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// Cosine thresholds governing the legacy hypothesis pipeline.
const (
	hypothesisMatchCosine          = 0.6
	hypothesisAgreementCosine      = 0.7
	hypothesisNegationCosine       = 0.5
	hypothesisRuleContradictCosine = 0.6
)

// Confidence deltas and thresholds for the legacy pipeline.
const (
	hypothesisValidateBoost    = 0.2
	hypothesisValidateCap      = 0.9
	hypothesisRejectPenalty    = 0.3
	hypothesisPromoteAt        = 3
	hypothesisRejectAt         = 2
	hypothesisNewConfidence    = 0.1
	hypothesisExpiryWindow     = 24 * time.Hour
	hypothesisExpireAtVisits   = 10
	hypothesisMinSignalConf    = 0.3
	hypothesisPromotedRuleConf = 0.8
	ruleContradictPenalty      = 0.15
)

// negationWords are the literal markers distinguishing a CORRECTION
// signal that negates a hypothesis from one that merely mentions it.
var negationWords = []string{"don't", "not", "never", "stop", "instead"}

func containsNegationWord(content string) bool {
	lower := strings.ToLower(content)
	for _, w := range negationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ScopedReport summarizes one EvolveScoped call.
type ScopedReport struct {
	SignalsProcessed    int `json:"signals_processed"`
	HypothesesCreated   int `json:"hypotheses_created"`
	HypothesesValidated int `json:"hypotheses_validated"`
	HypothesesRejected  int `json:"hypotheses_rejected"`
	HypothesesPromoted  int `json:"hypotheses_promoted"`
	HypothesesExpired   int `json:"hypotheses_expired"`
	RulesContradicted   int `json:"rules_contradicted"`
}

// EvolveScoped is the legacy, hypothesis-based evolution pipeline: new
// signals corroborate or contradict PENDING/VALIDATING hypotheses
// rather than mutating ScopedRules directly, except that CORRECTION
// signals additionally contradict matching rules of any state in the
// same scope. A hypothesis graduates to a ScopedRule once it
// accumulates three validations, and is dropped once it accumulates
// two rejections, hits its expiry, or is revisited ten times without
// resolving.
func (c *Compiler) EvolveScoped(signals []types.Signal) ScopedReport {
	var report ScopedReport
	for _, sig := range signals {
		report.SignalsProcessed++
		c.evolveScopedOne(sig, &report)
		c.sweepHypotheses(&report)
	}
	c.updateProfile(signals)
	c.updateStyle(signals)
	return report
}

func (c *Compiler) evolveScopedOne(sig types.Signal, report *ScopedReport) {
	scopePath, targetNode := DetectScope(sig.Content, sig.Metadata)
	sigEmb := c.emb.Embed(sig.Content)

	if sig.Type == types.SignalCorrection {
		c.contradictMatchingRules(scopePath, sigEmb, report)
	}

	validated := c.matchAndResolveHypotheses(sig, sigEmb, report)

	if !validated && sig.Confidence >= hypothesisMinSignalConf {
		c.createHypothesis(sig, scopePath, targetNode, sigEmb)
		report.HypothesesCreated++
	}
}

// matchAndResolveHypotheses scans pending/validating hypotheses within
// hypothesisMatchCosine of the signal, validating or rejecting each
// one that additionally clears the agreement/negation test. It reports
// whether at least one hypothesis was validated, so the caller can
// decide whether to also create a new one.
func (c *Compiler) matchAndResolveHypotheses(sig types.Signal, sigEmb []float64, report *ScopedReport) bool {
	var validatedAny bool
	for _, h := range c.kernel.AllHypotheses() {
		if h.State != types.HypothesisPending && h.State != types.HypothesisValidating {
			continue
		}
		if embedder.Cosine(sigEmb, h.Embedding) <= hypothesisMatchCosine {
			continue
		}

		switch {
		case (sig.Type == types.SignalPreference || sig.Type == types.SignalWorkflow) &&
			embedder.Cosine(sigEmb, h.Embedding) > hypothesisAgreementCosine:
			c.validateHypothesis(h.ID, report)
			validatedAny = true
		case sig.Type == types.SignalCorrection &&
			embedder.Cosine(sigEmb, h.Embedding) > hypothesisNegationCosine &&
			containsNegationWord(sig.Content):
			c.rejectHypothesis(h.ID, report)
		}
	}
	return validatedAny
}

func (c *Compiler) validateHypothesis(id string, report *ScopedReport) {
	var promoted bool
	var snapshot types.Hypothesis
	c.kernel.MutateHypothesis(id, func(h *types.Hypothesis) {
		h.Validations++
		h.Confidence = minFloat(hypothesisValidateCap, h.Confidence+hypothesisValidateBoost)
		if h.Validations >= hypothesisPromoteAt {
			h.State = types.HypothesisPromoted
			promoted = true
		} else {
			h.State = types.HypothesisValidating
		}
		snapshot = *h
	})
	report.HypothesesValidated++

	if !promoted {
		return
	}
	c.promoteHypothesis(snapshot)
	report.HypothesesPromoted++
}

func (c *Compiler) promoteHypothesis(h types.Hypothesis) {
	rule := types.ScopedRule{
		Content:      h.Content,
		ScopePath:    h.ScopePath,
		TargetNode:   h.TargetNode,
		SourceNode:   h.SourceNode,
		Relation:     h.Relation,
		Confidence:   hypothesisPromotedRuleConf,
		Weight:       1.0,
		Embedding:    h.Embedding,
		CreatedAt:    c.now(),
		PromotedFrom: h.ID,
	}
	if _, err := c.kernel.AddScopedRule(rule); err != nil {
		logging.Get(logging.CategoryCompiler).Warnf("promoting hypothesis %s: %v", h.ID, err)
	}
	c.archiveHypothesis(h, "promoted")
	c.kernel.RemoveHypothesis(h.ID)
}

func (c *Compiler) rejectHypothesis(id string, report *ScopedReport) {
	var dropped bool
	var snapshot types.Hypothesis
	c.kernel.MutateHypothesis(id, func(h *types.Hypothesis) {
		h.Rejections++
		h.Confidence = maxFloat(0, h.Confidence-hypothesisRejectPenalty)
		if h.Rejections >= hypothesisRejectAt {
			h.State = types.HypothesisRejected
			dropped = true
		}
		snapshot = *h
	})
	report.HypothesesRejected++

	if dropped {
		c.archiveHypothesis(snapshot, "rejected")
		c.kernel.RemoveHypothesis(id)
	}
}

func (c *Compiler) contradictMatchingRules(scopePath []string, sigEmb []float64, report *ScopedReport) {
	for _, r := range c.kernel.AllScopedRules() {
		if !equalScopePath(r.ScopePath, scopePath) {
			continue
		}
		if embedder.Cosine(sigEmb, r.Embedding) <= hypothesisRuleContradictCosine {
			continue
		}
		id := r.ID
		c.kernel.MutateScopedRule(id, func(rule *types.ScopedRule) {
			rule.Reject(ruleContradictPenalty, c.now())
		})
		report.RulesContradicted++
	}
}

func (c *Compiler) createHypothesis(sig types.Signal, scopePath []string, targetNode string, sigEmb []float64) {
	h := types.Hypothesis{
		Content:    sig.Content,
		ScopePath:  scopePath,
		TargetNode: targetNode,
		SourceNode: "user",
		Relation:   types.RelationForSignalType(sig.Type),
		Confidence: hypothesisNewConfidence,
		State:      types.HypothesisPending,
		ExpiresAt:  c.now().Add(hypothesisExpiryWindow),
		Embedding:  sigEmb,
	}
	if _, err := c.kernel.AddHypothesis(h); err != nil {
		logging.Get(logging.CategoryCompiler).Warnf("creating hypothesis for scope %v: %v", scopePath, err)
	}
}

// sweepHypotheses increments every remaining hypothesis's
// validation-interaction counter and drops any that have expired or
// been revisited too many times without resolving.
func (c *Compiler) sweepHypotheses(report *ScopedReport) {
	now := c.now()
	for _, h := range c.kernel.AllHypotheses() {
		id := h.ID
		var expired bool
		var snapshot types.Hypothesis
		c.kernel.MutateHypothesis(id, func(hp *types.Hypothesis) {
			hp.ValidationInteractions++
			if hp.ExpiresAt.Before(now) || hp.ValidationInteractions >= hypothesisExpireAtVisits {
				hp.State = types.HypothesisExpired
				expired = true
			}
			snapshot = *hp
		})
		if expired {
			c.archiveHypothesis(snapshot, "expired")
			c.kernel.RemoveHypothesis(id)
			report.HypothesesExpired++
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
