package compiler

import (
	"github.com/google/uuid"

	"github.com/splk-dev/splk/internal/types"
)

// defaultMaxGoalPriority is the severity baseline used when a signal's
// scope has no active goals at all.
const defaultMaxGoalPriority = 5

// socraticSeverityThreshold is the severity above which a conflict is
// escalated to the user instead of silently resolved.
const socraticSeverityThreshold = 8.0

// socraticGentlePenalty is the confidence cost a conflicting rule pays
// when its conflict is resolved silently rather than escalated.
const socraticGentlePenalty = 0.05

// AdaptiveSocratic resolves a conflict between an incoming signal and
// an existing rule without always interrupting the user: it weighs the
// conflict's severity — the user's strongest active goal priority in
// the signal's scope, multiplied by the rule's own confidence — against
// a fixed threshold. High-severity conflicts produce a
// CollaborationRequest for the caller to surface; low-severity
// conflicts are resolved by gently demoting the rule and returning nil.
func (c *Compiler) AdaptiveSocratic(signal types.Signal, conflictingRule types.ScopedRule) *types.CollaborationRequest {
	scopePath, _ := DetectScope(signal.Content, signal.Metadata)
	goals := c.kernel.GetActiveGoals(scopePath)

	maxPriority := defaultMaxGoalPriority
	now := c.now()
	if len(goals) > 0 {
		maxPriority = 0
		for _, g := range goals {
			if p := g.DecayPriority(now); p > maxPriority {
				maxPriority = p
			}
		}
	}

	severity := float64(maxPriority) * conflictingRule.Confidence
	if severity > socraticSeverityThreshold {
		return &types.CollaborationRequest{
			ID:              uuid.NewString(),
			TriggerSignal:   signal,
			ConflictingRule: conflictingRule.ID,
			Reason:          "conflict severity exceeds silent-resolution threshold",
			ProposedOptions: append([]string(nil), types.CanonicalCollaborationOptions...),
			CreatedAt:       now,
		}
	}

	id := conflictingRule.ID
	c.kernel.MutateScopedRule(id, func(r *types.ScopedRule) {
		r.Reject(socraticGentlePenalty, now)
	})
	return nil
}
