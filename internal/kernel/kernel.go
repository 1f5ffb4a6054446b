// Package kernel is the in-memory authority for all persistent SPLK
// entities: context nodes, scoped rules, hypotheses, goals, facts, and
// the interaction log. It owns the system's invariants — scope
// matching, state<->confidence coherence, resource bounds, dedup —
// and is the only component permitted to mutate its own maps. All exported methods acquire a single lock
// before touching kernel state and release it on every exit path,
// including panics recovered by the caller.
package kernel

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splk-dev/splk/internal/embedder"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// Default resource bounds, matching the defaults of the SPLK_MAX_RULES /
// SPLK_MAX_NODES environment variables.
const (
	DefaultMaxRules      = 1000
	DefaultMaxNodes      = 500
	DefaultMaxHypotheses = 2000
	DefaultGCThreshold   = 50
	processedRegistryCap = 10000
	lockAcquireTimeout   = 5 * time.Second
)

// Archiver is the minimal interface the Kernel needs from cold storage
// to hand off pruned or expired entities before dropping them. A
// *coldstorage.ColdStorage satisfies it structurally; the Kernel never
// imports the coldstorage package directly, breaking the dependency
// cycle recompile_brain would otherwise create (cold storage needs a
// Kernel to replay into).
type Archiver interface {
	ArchiveRule(rule types.ScopedRule, reason string) (int, error)
	ArchiveHypothesis(h types.Hypothesis, reason string) (int, error)
	ArchiveInteractions(logs []types.InteractionLog) (int, error)
}

// Metrics is the snapshot returned by Kernel.Metrics.
type Metrics struct {
	RulesByState         map[types.RuleState]int `json:"rules_by_state"`
	NodesByType          map[types.NodeType]int  `json:"nodes_by_type"`
	GoalCount            int                     `json:"goal_count"`
	FactCount            int                     `json:"fact_count"`
	HypothesisCount      int                     `json:"hypothesis_count"`
	InteractionsLogged   int                     `json:"interactions_logged"`
	InteractionsArchived int                     `json:"interactions_archived"`
}

// Kernel is the shared-mutable unit of concurrency for the whole
// system; the Observer, Embedder, and Injector are stateless by
// comparison and never need this lock.
type Kernel struct {
	mu sync.Mutex

	maxRules      int
	maxNodes      int
	maxHypotheses int
	gcThreshold   int

	rules        map[string]*types.ScopedRule
	nodes        map[string]*types.ContextNode
	hypotheses   map[string]*types.Hypothesis
	goals        map[string]*types.UserGoal
	facts        map[string]*types.UserFact
	interactions map[string]*types.InteractionLog

	processed      map[string]bool
	processedOrder []string

	workingMemory map[string]any
	activeProject string

	profile types.UserProfile

	archiver Archiver
	emb      *embedder.Embedder

	interactionsArchived int
	observeCount         int
}

// Option configures a Kernel at construction.
type Option func(*Kernel)

// WithMaxRules overrides the rule-count resource bound.
func WithMaxRules(n int) Option { return func(k *Kernel) { k.maxRules = n } }

// WithMaxNodes overrides the context-node-count resource bound.
func WithMaxNodes(n int) Option { return func(k *Kernel) { k.maxNodes = n } }

// WithMaxHypotheses overrides the hypothesis-count resource bound.
func WithMaxHypotheses(n int) Option { return func(k *Kernel) { k.maxHypotheses = n } }

// WithGCThreshold overrides how many observations elapse between
// automatic garbage collections.
func WithGCThreshold(n int) Option { return func(k *Kernel) { k.gcThreshold = n } }

// WithArchiver attaches a cold-storage archiver for pruned/expired
// entities. Without one, pruning simply drops them.
func WithArchiver(a Archiver) Option { return func(k *Kernel) { k.archiver = a } }

// WithEmbedder attaches the Embedder used for query-time cosine
// boosting in QueryScopedRules. Without one, queries fall back to pure
// weight*confidence ranking.
func WithEmbedder(e *embedder.Embedder) Option { return func(k *Kernel) { k.emb = e } }

// New constructs an empty Kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		maxRules:      DefaultMaxRules,
		maxNodes:      DefaultMaxNodes,
		maxHypotheses: DefaultMaxHypotheses,
		gcThreshold:   DefaultGCThreshold,
		rules:         make(map[string]*types.ScopedRule),
		nodes:         make(map[string]*types.ContextNode),
		hypotheses:    make(map[string]*types.Hypothesis),
		goals:         make(map[string]*types.UserGoal),
		facts:         make(map[string]*types.UserFact),
		interactions:  make(map[string]*types.InteractionLog),
		processed:     make(map[string]bool),
		workingMemory: make(map[string]any),
		profile:       types.NewUserProfile(),
		emb:           embedder.New(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// lock acquires the kernel's mutex, treating a wait longer than
// lockAcquireTimeout as a fatal deadlock indicator (a programming
// error, never recovered internally).
func (k *Kernel) lock() {
	deadline := time.Now().Add(lockAcquireTimeout)
	for {
		if k.mu.TryLock() {
			return
		}
		if time.Now().After(deadline) {
			panic(types.NewKernelError(types.KindDeadlock, "kernel lock not acquired within timeout", nil))
		}
		time.Sleep(time.Millisecond)
	}
}

func (k *Kernel) unlock() {
	k.mu.Unlock()
}

// SetWorkingMemory stores a transient key/value pair, cleared on Close.
func (k *Kernel) SetWorkingMemory(key string, value any) {
	k.lock()
	defer k.unlock()
	k.workingMemory[key] = value
}

// GetWorkingMemory retrieves a transient value.
func (k *Kernel) GetWorkingMemory(key string) (any, bool) {
	k.lock()
	defer k.unlock()
	v, ok := k.workingMemory[key]
	return v, ok
}

// ClearWorkingMemory drops all transient key/value pairs.
func (k *Kernel) ClearWorkingMemory() {
	k.lock()
	defer k.unlock()
	k.workingMemory = make(map[string]any)
}

// SetActiveProject records the current project name. It is saved by
// Export and restored by Load; scope detection does not read it.
func (k *Kernel) SetActiveProject(name string) {
	k.lock()
	defer k.unlock()
	k.activeProject = name
}

// ActiveProject returns the current project name, or "" if unset.
func (k *Kernel) ActiveProject() string {
	k.lock()
	defer k.unlock()
	return k.activeProject
}

// Profile returns a copy of the kernel's singleton user profile,
// including its nested style vector.
func (k *Kernel) Profile() types.UserProfile {
	k.lock()
	defer k.unlock()
	return k.profile
}

// MutateProfile applies fn to the kernel's user profile under lock,
// used by the Compiler to fold expertise/preference/style signals in
// as they are observed.
func (k *Kernel) MutateProfile(fn func(*types.UserProfile)) {
	k.lock()
	defer k.unlock()
	fn(&k.profile)
}

// ResetForRecompile clears rules, hypotheses, and context nodes —
// exactly the entities recompile_brain rebuilds by replaying archived
// interactions — leaving goals, facts, and working memory untouched.
func (k *Kernel) ResetForRecompile() {
	k.lock()
	defer k.unlock()
	k.rules = make(map[string]*types.ScopedRule)
	k.hypotheses = make(map[string]*types.Hypothesis)
	k.nodes = make(map[string]*types.ContextNode)
}

// --- Context nodes ---------------------------------------------------

// AddContextNode inserts a node, assigning it an id if absent. Bound
// order is: check the limit, then prune unreferenced leaf nodes, then
// insert; a ResourceLimitError is returned only if pruning could not
// make room.
func (k *Kernel) AddContextNode(node types.ContextNode) (string, error) {
	k.lock()
	defer k.unlock()

	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	now := time.Now()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now

	for cur, seen := node.ParentID, map[string]bool{}; cur != "" && !seen[cur]; {
		if cur == node.ID {
			return "", types.NewKernelError(types.KindValidation, "context node would become its own ancestor", map[string]any{"id": node.ID})
		}
		seen[cur] = true
		parent, ok := k.nodes[cur]
		if !ok {
			break
		}
		cur = parent.ParentID
	}

	if len(k.nodes) >= k.maxNodes {
		k.pruneContextNodesLocked()
	}
	if len(k.nodes) >= k.maxNodes {
		return "", types.NewKernelError(types.KindResourceLimit, "max_context_nodes exceeded", map[string]any{"max_nodes": k.maxNodes})
	}

	k.nodes[node.ID] = &node
	if node.ParentID != "" {
		if parent, ok := k.nodes[node.ParentID]; ok {
			parent.ChildrenIDs = append(parent.ChildrenIDs, node.ID)
		}
	}
	logging.KernelDebug("added context node %s (%s/%s)", node.ID, node.Type, node.Name)
	return node.ID, nil
}

// GetContextNode returns a copy of a node by id.
func (k *Kernel) GetContextNode(id string) (types.ContextNode, bool) {
	k.lock()
	defer k.unlock()
	n, ok := k.nodes[id]
	if !ok {
		return types.ContextNode{}, false
	}
	return *n, true
}

// FindNodeByName performs a case-insensitive lookup by name.
func (k *Kernel) FindNodeByName(name string) (types.ContextNode, bool) {
	k.lock()
	defer k.unlock()
	lower := lowerASCII(name)
	for _, n := range k.nodes {
		if lowerASCII(n.Name) == lower {
			return *n, true
		}
	}
	return types.ContextNode{}, false
}

// ScopePath computes a node's full scope path by walking parent links.
func (k *Kernel) ScopePath(id string) []string {
	k.lock()
	defer k.unlock()
	return k.scopePathLocked(id)
}

func (k *Kernel) scopePathLocked(id string) []string {
	var path []string
	seen := make(map[string]bool)
	cur := id
	for cur != "" && !seen[cur] {
		seen[cur] = true
		n, ok := k.nodes[cur]
		if !ok {
			break
		}
		path = append([]string{n.Name}, path...)
		cur = n.ParentID
	}
	return path
}

// --- Hypotheses --------------------------------------------------------

// AddHypothesis inserts a hypothesis, first pruning the lowest-confidence
// 10% (at least one) of all hypotheses if the bound is reached.
func (k *Kernel) AddHypothesis(h types.Hypothesis) (string, error) {
	k.lock()
	defer k.unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}

	if len(k.hypotheses) >= k.maxHypotheses {
		k.pruneHypothesesLocked()
	}
	if len(k.hypotheses) >= k.maxHypotheses {
		return "", types.NewKernelError(types.KindResourceLimit, "max_hypotheses exceeded", map[string]any{"max_hypotheses": k.maxHypotheses})
	}

	k.hypotheses[h.ID] = &h
	return h.ID, nil
}

// GetHypothesis returns a copy of a hypothesis by id.
func (k *Kernel) GetHypothesis(id string) (types.Hypothesis, bool) {
	k.lock()
	defer k.unlock()
	h, ok := k.hypotheses[id]
	if !ok {
		return types.Hypothesis{}, false
	}
	return *h, true
}

// MutateHypothesis applies fn to the stored hypothesis under lock,
// allowing the Compiler to update validations/rejections atomically
// with respect to other kernel operations.
func (k *Kernel) MutateHypothesis(id string, fn func(*types.Hypothesis)) bool {
	k.lock()
	defer k.unlock()
	h, ok := k.hypotheses[id]
	if !ok {
		return false
	}
	fn(h)
	return true
}

// RemoveHypothesis drops a hypothesis from the active map (used after
// promotion or expiry, once its content has been handed off).
func (k *Kernel) RemoveHypothesis(id string) {
	k.lock()
	defer k.unlock()
	delete(k.hypotheses, id)
}

// GetPendingHypotheses returns copies of every hypothesis currently in
// PENDING or VALIDATING state.
func (k *Kernel) GetPendingHypotheses() []types.Hypothesis {
	k.lock()
	defer k.unlock()
	var out []types.Hypothesis
	for _, h := range k.hypotheses {
		if h.State == types.HypothesisPending || h.State == types.HypothesisValidating {
			out = append(out, *h)
		}
	}
	return out
}

// AllHypotheses returns copies of every hypothesis regardless of state.
func (k *Kernel) AllHypotheses() []types.Hypothesis {
	k.lock()
	defer k.unlock()
	out := make([]types.Hypothesis, 0, len(k.hypotheses))
	for _, h := range k.hypotheses {
		out = append(out, *h)
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
