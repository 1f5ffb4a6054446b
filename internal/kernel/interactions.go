package kernel

import (
	"time"

	"github.com/google/uuid"

	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// LogInteraction records a (user, ai) interaction, deduplicated by
// content hash. A duplicate is rejected: it returns ("", false) and
// the kernel is otherwise unchanged.
func (k *Kernel) LogInteraction(user, ai string) (string, bool) {
	k.lock()
	defer k.unlock()

	hash := types.ContentHash(user, ai)
	if k.processed[hash] {
		return "", false
	}

	log := types.InteractionLog{
		ID:          uuid.NewString(),
		UserInput:   user,
		AIOutput:    ai,
		Timestamp:   time.Now(),
		ContentHash: hash,
	}
	k.interactions[log.ID] = &log
	k.markProcessedLocked(hash)
	k.observeCount++
	return log.ID, true
}

func (k *Kernel) markProcessedLocked(hash string) {
	k.processed[hash] = true
	k.processedOrder = append(k.processedOrder, hash)
	if len(k.processedOrder) > processedRegistryCap {
		evictCount := len(k.processedOrder) - processedRegistryCap
		for _, h := range k.processedOrder[:evictCount] {
			delete(k.processed, h)
		}
		k.processedOrder = k.processedOrder[evictCount:]
	}
}

// ShouldAutoGC reports whether gcThreshold observations have
// accumulated since the kernel was created (or last GC'd), used by the
// Facade to decide when to call GarbageCollect automatically.
func (k *Kernel) ShouldAutoGC() bool {
	k.lock()
	defer k.unlock()
	return k.gcThreshold > 0 && k.observeCount >= k.gcThreshold
}

// GCStats is the result of a GarbageCollect call.
type GCStats struct {
	InteractionsArchived int `json:"interactions_archived"`
	HypothesesExpired    int `json:"hypotheses_expired"`
}

// GarbageCollect archives every logged interaction to cold storage (if
// an archiver is attached), clears the kernel's interaction map, and
// expires any hypothesis past its ExpiresAt.
func (k *Kernel) GarbageCollect() GCStats {
	k.lock()
	defer k.unlock()

	var stats GCStats
	if len(k.interactions) > 0 {
		logs := make([]types.InteractionLog, 0, len(k.interactions))
		for _, l := range k.interactions {
			logs = append(logs, *l)
		}
		if k.archiver != nil {
			if n, err := k.archiver.ArchiveInteractions(logs); err == nil {
				stats.InteractionsArchived = n
				k.interactionsArchived += n
			} else {
				logging.KernelWarn("archiving interactions during GC: %v", err)
			}
		} else {
			stats.InteractionsArchived = len(logs)
		}
		k.interactions = make(map[string]*types.InteractionLog)
	}

	now := time.Now()
	for id, h := range k.hypotheses {
		if !h.ExpiresAt.IsZero() && h.ExpiresAt.Before(now) {
			if k.archiver != nil {
				_, _ = k.archiver.ArchiveHypothesis(*h, "expired")
			}
			delete(k.hypotheses, id)
			stats.HypothesesExpired++
		}
	}

	k.observeCount = 0
	return stats
}

// Metrics returns a snapshot of kernel-wide counters.
func (k *Kernel) Metrics() Metrics {
	k.lock()
	defer k.unlock()

	m := Metrics{
		RulesByState: make(map[types.RuleState]int),
		NodesByType:  make(map[types.NodeType]int),
	}
	for _, r := range k.rules {
		m.RulesByState[r.State]++
	}
	for _, n := range k.nodes {
		m.NodesByType[n.Type]++
	}
	m.GoalCount = len(k.goals)
	m.FactCount = len(k.facts)
	m.HypothesisCount = len(k.hypotheses)
	m.InteractionsLogged = len(k.interactions)
	m.InteractionsArchived = k.interactionsArchived
	return m
}
