package kernel

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// AddScopedRule inserts a rule, assigning an id and deriving its state
// from its confidence if not already consistent. Bound order mirrors
// AddContextNode: check, prune, insert.
func (k *Kernel) AddScopedRule(rule types.ScopedRule) (string, error) {
	k.lock()
	defer k.unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	if rule.LastActivated.IsZero() {
		rule.LastActivated = now
	}
	rule.State = types.StateForConfidence(rule.Confidence)

	if len(k.rules) >= k.maxRules {
		k.pruneScopedRulesLocked()
	}
	if len(k.rules) >= k.maxRules {
		return "", types.NewKernelError(types.KindResourceLimit, "max_rules exceeded", map[string]any{"max_rules": k.maxRules})
	}

	k.rules[rule.ID] = &rule
	logging.KernelDebug("added scoped rule %s scope=%v state=%s", rule.ID, rule.ScopePath, rule.State)
	return rule.ID, nil
}

// GetScopedRule returns a copy of a rule by id.
func (k *Kernel) GetScopedRule(id string) (types.ScopedRule, bool) {
	k.lock()
	defer k.unlock()
	r, ok := k.rules[id]
	if !ok {
		return types.ScopedRule{}, false
	}
	return *r, true
}

// MutateScopedRule applies fn to the stored rule under the kernel
// lock, then re-derives State from the (possibly changed) Confidence,
// preserving the state<->confidence coherence invariant regardless of
// what fn did.
func (k *Kernel) MutateScopedRule(id string, fn func(*types.ScopedRule)) bool {
	k.lock()
	defer k.unlock()
	r, ok := k.rules[id]
	if !ok {
		return false
	}
	fn(r)
	r.State = types.StateForConfidence(r.Confidence)
	return true
}

// AllScopedRules returns copies of every rule regardless of scope or
// state. Used by the Compiler's in-scope exact-match lookup and by
// export.
func (k *Kernel) AllScopedRules() []types.ScopedRule {
	k.lock()
	defer k.unlock()
	out := make([]types.ScopedRule, 0, len(k.rules))
	for _, r := range k.rules {
		out = append(out, *r)
	}
	return out
}

// RemoveScopedRule deletes a rule outright (used by pruning and by
// rejection-driven deprecation cleanup, if the caller chooses to purge
// rather than keep a DEPRECATED rule around).
func (k *Kernel) RemoveScopedRule(id string) {
	k.lock()
	defer k.unlock()
	delete(k.rules, id)
}

// --- Goals and facts -----------------------------------------------------

// AddGoal inserts a UserGoal, assigning an id if absent.
func (k *Kernel) AddGoal(goal types.UserGoal) (string, error) {
	k.lock()
	defer k.unlock()
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.LastReinforced.IsZero() {
		goal.LastReinforced = time.Now()
	}
	if goal.Priority == 0 {
		goal.Priority = 10
	}
	if goal.HalfLifeDays == 0 {
		goal.HalfLifeDays = 7
	}
	k.goals[goal.ID] = &goal
	return goal.ID, nil
}

// AddFact inserts a UserFact, assigning an id if absent.
func (k *Kernel) AddFact(fact types.UserFact) (string, error) {
	k.lock()
	defer k.unlock()
	if fact.ID == "" {
		fact.ID = uuid.NewString()
	}
	now := time.Now()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.UpdatedAt = now
	if fact.Priority == 0 {
		fact.Priority = 5
	}
	k.facts[fact.ID] = &fact
	return fact.ID, nil
}

// isPrefixScope reports whether prefix is a case-insensitive ordered
// prefix of path. An empty prefix matches everything.
func isPrefixScope(prefix, path []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i, p := range prefix {
		if lowerASCII(p) != lowerASCII(path[i]) {
			return false
		}
	}
	return true
}

// GetActiveGoals returns UserGoals whose scope is a prefix of scope
// (or global), with an unexpired Expiry, sorted by decayed priority
// descending.
func (k *Kernel) GetActiveGoals(scope []string) []types.UserGoal {
	k.lock()
	defer k.unlock()
	now := time.Now()
	var out []types.UserGoal
	for _, g := range k.goals {
		if !isPrefixScope(g.ScopePath, scope) {
			continue
		}
		if g.Expiry != nil && g.Expiry.Before(now) {
			continue
		}
		out = append(out, *g)
	}
	sortGoalsByDecayedPriority(out, now)
	return out
}

// GetFactsNotConflicting returns UserFacts for scope that do not share
// content with any active goal in the same scope, sorted by confidence
// descending.
func (k *Kernel) GetFactsNotConflicting(scope []string) []types.UserFact {
	k.lock()
	defer k.unlock()
	goalContent := make(map[string]bool)
	for _, g := range k.goals {
		if isPrefixScope(g.ScopePath, scope) {
			goalContent[lowerASCII(g.Content)] = true
		}
	}
	var out []types.UserFact
	for _, f := range k.facts {
		if !isPrefixScope(f.ScopePath, scope) {
			continue
		}
		if goalContent[lowerASCII(f.Content)] {
			continue
		}
		out = append(out, *f)
	}
	sortFactsByConfidence(out)
	return out
}

// Both sorts tie-break on ID so results are stable across map
// iteration orders; the injector depends on this for reproducible
// prompt output.
func sortGoalsByDecayedPriority(goals []types.UserGoal, now time.Time) {
	sort.Slice(goals, func(i, j int) bool {
		pi, pj := goals[i].DecayPriority(now), goals[j].DecayPriority(now)
		if pi != pj {
			return pi > pj
		}
		return goals[i].ID < goals[j].ID
	})
}

func sortFactsByConfidence(facts []types.UserFact) {
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Confidence != facts[j].Confidence {
			return facts[i].Confidence > facts[j].Confidence
		}
		return facts[i].ID < facts[j].ID
	})
}
