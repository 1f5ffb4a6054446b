package coldstorage

import (
	"encoding/json"
	"time"

	"github.com/splk-dev/splk/internal/compiler"
	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/kernel"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/observer"
	"github.com/splk-dev/splk/internal/types"
)

// RecompileReport summarizes one RecompileBrain replay.
type RecompileReport struct {
	EntriesProcessed    int      `json:"entries_processed"`
	InteractionsReplayed int     `json:"interactions_replayed"`
	SignalsExtracted    int      `json:"signals_extracted"`
	HypothesesCreated   int      `json:"hypotheses_created"`
	RulesPromoted       int      `json:"rules_promoted"`
	ContextNodesCreated int      `json:"context_nodes_created"`
	Errors              []string `json:"errors"`
	DurationSeconds     float64  `json:"duration_seconds"`
}

// RecompileBrain rebuilds a kernel's rules and hypotheses from scratch
// by replaying every archived interaction through a fresh Observer and
// the legacy hypothesis pipeline (evolve_scoped), whichever pipeline
// evolved the interactions when they were first observed. Goals,
// facts, and working memory are left untouched — only the entities
// derived from interaction content are rebuilt. ContextNodesCreated is
// always 0: nothing in either evolution pipeline derives a ContextNode
// from a signal's scope path (scope paths are plain string slices
// compared directly; the ContextNode tree is populated separately, by
// explicit AddContextNode calls from IDE/file-system observation), so
// a replay that only re-runs evolve_scoped has no context nodes to
// recreate.
func (c *ColdStorage) RecompileBrain(k *kernel.Kernel) (RecompileReport, error) {
	start := c.now()
	entries, err := c.ReadEntries([]EntryType{EntryInteraction}, time.Time{}, time.Time{})
	if err != nil {
		return RecompileReport{}, err
	}

	k.ResetForRecompile()
	obs := observer.New()
	emb := embedder.New()
	comp := compiler.New(k, compiler.WithEmbedder(emb))

	var report RecompileReport
	type replay struct {
		signals []types.Signal
	}
	replays := make([]replay, 0, len(entries))

	// First pass: unmarshal and extract signals from every interaction,
	// collecting their content so it can be embedded as one concurrent
	// batch below instead of one call at a time inside EvolveScoped.
	var toEmbed []string
	for _, e := range entries {
		report.EntriesProcessed++

		var log types.InteractionLog
		if err := json.Unmarshal(e.Data, &log); err != nil {
			report.Errors = append(report.Errors, err.Error())
			logging.Get(logging.CategoryColdStorage).Warnf("skipping unreadable interaction during recompile: %v", err)
			continue
		}

		signals, _ := obs.Observe(log.UserInput, log.AIOutput)
		report.InteractionsReplayed++
		report.SignalsExtracted += len(signals)
		for _, sig := range signals {
			toEmbed = append(toEmbed, sig.Content)
		}
		replays = append(replays, replay{signals: signals})
	}

	// Warms emb's cache concurrently so the per-signal Embed calls
	// EvolveScoped makes below are cache hits rather than serial
	// recomputation over what can be a large archived history.
	emb.BatchEmbed(toEmbed)

	for _, r := range replays {
		scoped := comp.EvolveScoped(r.signals)
		report.HypothesesCreated += scoped.HypothesesCreated
		report.RulesPromoted += scoped.HypothesesPromoted
	}

	report.DurationSeconds = c.now().Sub(start).Seconds()
	return report, nil
}
