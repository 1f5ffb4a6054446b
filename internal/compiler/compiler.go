// Package compiler evolves kernel state in response to observed
// signals. It carries two evolution pipelines side by side — the
// direct scientific-evolve pipeline and the legacy hypothesis-based
// evolve-scoped pipeline — plus the shadow
// prediction/validation mechanism and the adaptive-Socratic conflict
// resolver. The Compiler never mutates its own state across calls: all
// durable state lives in the Kernel it is constructed with.
package compiler

import (
	"sort"
	"time"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/kernel"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// HypothesisArchiver is the minimal cold-storage surface the Compiler
// needs to hand off a hypothesis's content before dropping it from the
// kernel's active map (promoted, rejected, or expired).
type HypothesisArchiver interface {
	ArchiveHypothesis(h types.Hypothesis, reason string) (int, error)
}

// Compiler evolves a Kernel's rules and hypotheses from batches of
// Signals. It holds no durable state of its own.
type Compiler struct {
	kernel   *kernel.Kernel
	emb      *embedder.Embedder
	archiver HypothesisArchiver
	now      func() time.Time
}

// Option configures a Compiler at construction.
type Option func(*Compiler)

// WithEmbedder overrides the embedder used for scope-match and
// hypothesis-corroboration cosine similarity. Without one, the
// Compiler constructs its own.
func WithEmbedder(e *embedder.Embedder) Option { return func(c *Compiler) { c.emb = e } }

// WithArchiver attaches a cold-storage sink for promoted, rejected, and
// expired hypotheses. Without one, hypotheses are simply dropped.
func WithArchiver(a HypothesisArchiver) Option { return func(c *Compiler) { c.archiver = a } }

// withClock overrides the compiler's notion of "now"; used by tests
// that need deterministic timestamps.
func withClock(fn func() time.Time) Option { return func(c *Compiler) { c.now = fn } }

// New constructs a Compiler bound to k.
func New(k *kernel.Kernel, opts ...Option) *Compiler {
	c := &Compiler{
		kernel: k,
		emb:    embedder.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sortRulesOldestFirst orders a rule snapshot by CreatedAt, then ID,
// so first-match scans over it are stable across map iteration orders.
func sortRulesOldestFirst(rules []types.ScopedRule) {
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

func (c *Compiler) archiveHypothesis(h types.Hypothesis, reason string) {
	if c.archiver == nil {
		return
	}
	if _, err := c.archiver.ArchiveHypothesis(h, reason); err != nil {
		logging.Get(logging.CategoryCompiler).Warnf("archiving hypothesis %s (%s): %v", h.ID, reason, err)
	}
}
