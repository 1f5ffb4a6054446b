// Package splk is the session facade over the kernel, compiler,
// observer, and injector: one Session exposes Observe, Teach, Inject,
// Save, Load, and Close, constructed with functional options so the
// zero-config path stays a one-liner.
package splk

import (
	"sync/atomic"
	"time"

	"github.com/splk-dev/splk/internal/coldstorage"
	"github.com/splk-dev/splk/internal/compiler"
	"github.com/splk-dev/splk/internal/config"
	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/injector"
	"github.com/splk-dev/splk/internal/kernel"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/observer"
	"github.com/splk-dev/splk/internal/types"
)

// Session is a running SPLK instance: the in-memory kernel plus the
// stateless components that operate on it and the cold-storage archive
// behind it, if any.
type Session struct {
	k       *kernel.Kernel
	emb     *embedder.Embedder
	comp    *compiler.Compiler
	obs     *observer.Observer
	archive *coldstorage.ColdStorage
	mode    types.EvolutionMode
	maxTok  atomic.Int64
	watcher *config.Watcher

	watchConfig        bool
	deferredKernelOpts []kernel.Option
}

// Option configures a Session at construction.
type Option func(*Session)

// WithArchivePath attaches a cold-storage archive at path; without one,
// garbage collection drops pruned/expired entities instead of archiving
// them. maxBytes <= 0 uses coldstorage.DefaultMaxArchiveBytes.
func WithArchivePath(path string, maxBytes int64) Option {
	return func(s *Session) {
		var opts []coldstorage.Option
		if maxBytes > 0 {
			opts = append(opts, coldstorage.WithMaxBytes(maxBytes))
		}
		s.archive = coldstorage.New(path, opts...)
	}
}

// WithEvolutionMode selects which Compiler pipeline Observe drives
// automatically (ScientificEvolve by default; see DESIGN.md's Open
// Question decision #1).
func WithEvolutionMode(mode types.EvolutionMode) Option {
	return func(s *Session) { s.mode = mode }
}

// WithMaxRules overrides the kernel's rule-count resource bound.
func WithMaxRules(n int) Option { return func(s *Session) { s.deferKernelOpt(kernel.WithMaxRules(n)) } }

// WithMaxNodes overrides the kernel's context-node-count resource bound.
func WithMaxNodes(n int) Option { return func(s *Session) { s.deferKernelOpt(kernel.WithMaxNodes(n)) } }

// WithMaxHypotheses overrides the kernel's hypothesis-count resource bound.
func WithMaxHypotheses(n int) Option {
	return func(s *Session) { s.deferKernelOpt(kernel.WithMaxHypotheses(n)) }
}

// WithGCThreshold overrides how many observations elapse between
// automatic garbage collections.
func WithGCThreshold(n int) Option {
	return func(s *Session) { s.deferKernelOpt(kernel.WithGCThreshold(n)) }
}

// WithDefaultMaxTokens overrides Inject's default token budget.
func WithDefaultMaxTokens(n int) Option { return func(s *Session) { s.maxTok.Store(int64(n)) } }

// WithConfigWatch enables live-reload: whenever the project or home
// config.yaml changes on disk, the session's default token budget and
// log level are updated from the newly resolved config without a
// restart. Intended for long-running embeddings of Session (a daemon
// or server), not one-shot CLI invocations.
func WithConfigWatch() Option { return func(s *Session) { s.watchConfig = true } }

func (s *Session) deferKernelOpt(opt kernel.Option) {
	s.deferredKernelOpts = append(s.deferredKernelOpts, opt)
}

// New constructs a Session ready to Observe/Teach/Inject.
func New(opts ...Option) *Session {
	s := &Session{mode: types.EvolutionScientific}
	s.maxTok.Store(int64(injector.DefaultMaxTokens))
	for _, opt := range opts {
		opt(s)
	}

	s.emb = embedder.New()
	kernelOpts := append([]kernel.Option{kernel.WithEmbedder(s.emb)}, s.deferredKernelOpts...)
	if s.archive != nil {
		kernelOpts = append(kernelOpts, kernel.WithArchiver(s.archive))
	}
	s.k = kernel.New(kernelOpts...)

	compOpts := []compiler.Option{compiler.WithEmbedder(s.emb)}
	if s.archive != nil {
		compOpts = append(compOpts, compiler.WithArchiver(s.archive))
	}
	s.comp = compiler.New(s.k, compOpts...)
	s.obs = observer.New()
	s.deferredKernelOpts = nil

	if s.watchConfig {
		if w, err := config.NewWatcher(s.applyConfig); err == nil {
			s.watcher = w
			_ = s.watcher.Start()
		} else {
			logging.Get(logging.CategoryFacade).Errorf("config watch disabled: %v", err)
		}
	}
	return s
}

// applyConfig is the config.Watcher callback: it updates the fields a
// running Session can safely change without a restart.
func (s *Session) applyConfig(cfg *config.Config) {
	if cfg.DefaultMaxTokens > 0 {
		s.maxTok.Store(int64(cfg.DefaultMaxTokens))
	}
	logging.SetLevel(cfg.LogLevel)
}

// Kernel exposes the underlying kernel for callers that need direct
// query access (e.g. a CLI subcommand printing metrics).
func (s *Session) Kernel() *kernel.Kernel { return s.k }

// ObserveResult is what Observe returns: its status ("observed", or
// "skipped" on dedup), the log id, how many signals were
// extracted, and — when evolve is true — the evolution summary.
type ObserveResult struct {
	Status           string `json:"status"`
	LogID            string `json:"log_id,omitempty"`
	SignalsExtracted int    `json:"signals_extracted"`
	EvolutionSummary any    `json:"evolution_summary,omitempty"`
}

// Observe logs a (user, ai) interaction, extracts signals from it, and —
// when evolve is true — drives the configured evolution pipeline over
// those signals. A duplicate interaction (same content hash as one
// already logged) is a no-op: it returns {"status": "skipped"}
// without extracting signals or evolving anything. Auto-GC triggers
// after every observation that reaches the kernel's gc_threshold.
func (s *Session) Observe(user, ai string, evolve bool) ObserveResult {
	logID, ok := s.k.LogInteraction(user, ai)
	if !ok {
		return ObserveResult{Status: "skipped"}
	}

	signals, _ := s.obs.Observe(user, ai)
	result := ObserveResult{Status: "observed", LogID: logID, SignalsExtracted: len(signals)}

	if evolve && len(signals) > 0 {
		switch s.mode {
		case types.EvolutionScoped:
			result.EvolutionSummary = s.comp.EvolveScoped(signals)
		default:
			result.EvolutionSummary = s.comp.ScientificEvolve(signals)
		}
	}

	s.k.MutateProfile(func(p *types.UserProfile) { p.RecordInteraction(time.Now()) })

	if s.k.ShouldAutoGC() {
		s.k.GarbageCollect()
	}
	return result
}

// Teach force-creates an ESTABLISHED rule directly from an explicit
// instruction, bypassing the hypothesis/validation pipeline entirely —
// the user is asserting ground truth, not making an observation the
// kernel must corroborate.
const teachConfidence = 0.9

// Teach records instruction as an ESTABLISHED rule and returns the new
// rule's id. The scope is detected from the instruction; the normalized
// category is used as the scope only when detection finds nothing.
func (s *Session) Teach(instruction string, category string) (string, error) {
	normalized := types.NormalizeTeachCategory(category)
	scopePath, targetNode := compiler.DetectScope(instruction, nil)
	if len(scopePath) == 1 && scopePath[0] == "Global" {
		scopePath = []string{string(normalized)}
		targetNode = string(normalized)
	}

	rule := types.ScopedRule{
		Content:    instruction,
		ScopePath:  scopePath,
		TargetNode: targetNode,
		SourceNode: "user",
		Relation:   types.RelationPrefers,
		Confidence: teachConfidence,
		Weight:     1.0,
		Embedding:  s.emb.Embed(instruction),
	}
	return s.k.AddScopedRule(rule)
}

// Inject assembles the system prompt relevant to query, using maxTokens
// (or the session's configured default when maxTokens <= 0).
func (s *Session) Inject(query string, maxTokens int) injector.Result {
	if maxTokens <= 0 {
		maxTokens = int(s.maxTok.Load())
	}
	return injector.GenerateSystemPrompt(s.k, query, maxTokens)
}

// Save writes the kernel's snapshot to path (gzip-compressed when path
// ends in ".gz").
func (s *Session) Save(path string) error {
	return s.k.Save(path)
}

// Load replaces the kernel's state with the snapshot at path.
func (s *Session) Load(path string) error {
	return s.k.LoadFile(path)
}

// Close flushes any buffered interactions to cold storage and clears
// working memory, readying the session for a clean shutdown.
func (s *Session) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.k.GarbageCollect()
	s.k.ClearWorkingMemory()
	_ = logging.Sync()
}

// RecompileBrain rebuilds the session's rules and hypotheses from the
// full archived interaction history, requiring a cold-storage archive
// to have been configured via WithArchivePath.
func (s *Session) RecompileBrain() (coldstorage.RecompileReport, error) {
	if s.archive == nil {
		return coldstorage.RecompileReport{}, types.NewKernelError(types.KindIntegrity, "recompile requires an archive path", nil)
	}
	return s.archive.RecompileBrain(s.k)
}
