// Package types defines the leaf data structures shared by the kernel,
// compiler, observer, and cold-storage packages. Keeping them in one
// leaf package (rather than letting each package define its own view)
// breaks the circular-import pressure a kernel/compiler pair otherwise
// creates: none of those packages depend on each other's concrete
// types, only on this package's.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"
)

// SignalType is the closed set of signal categories the Observer emits.
type SignalType string

const (
	SignalCorrection  SignalType = "CORRECTION"
	SignalPreference  SignalType = "PREFERENCE"
	SignalStyle       SignalType = "STYLE"
	SignalEntity      SignalType = "ENTITY"
	SignalExpertise   SignalType = "EXPERTISE"
	SignalAversion    SignalType = "AVERSION"
	SignalContext     SignalType = "CONTEXT"
	SignalPersonality SignalType = "PERSONALITY"
	SignalGoal        SignalType = "GOAL"
	SignalWorkflow    SignalType = "WORKFLOW"
)

// SignalWeights gives the per-type weight used when averaging a batch's
// aggregate confidence.
var SignalWeights = map[SignalType]float64{
	SignalCorrection:  2.0,
	SignalPreference:  1.5,
	SignalAversion:    1.5,
	SignalExpertise:   1.3,
	SignalGoal:        1.2,
	SignalStyle:       0.8,
	SignalPersonality: 0.7,
}

// Stream identifies the origin of an observed interaction.
type Stream string

const (
	StreamBrowser  Stream = "browser"
	StreamIDE      Stream = "ide"
	StreamTerminal Stream = "terminal"
)

// Signal is a transient unit of extracted meaning. The Observer produces
// them; the Compiler consumes them within a single evolve call. They are
// never persisted in the kernel's long-term maps.
type Signal struct {
	Type       SignalType     `json:"type"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	SourceHash string         `json:"source_hash"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NodeType is the closed set of context-node categories.
type NodeType string

const (
	NodeLanguage    NodeType = "LANGUAGE"
	NodeFramework   NodeType = "FRAMEWORK"
	NodeDomain      NodeType = "DOMAIN"
	NodeProject     NodeType = "PROJECT"
	NodeTechnology  NodeType = "TECHNOLOGY"
	NodeParadigm    NodeType = "PARADIGM"
	NodeEnvironment NodeType = "ENVIRONMENT"
)

// ContextNode is a node in the scope tree the Kernel owns. A child's
// scope path is always its parent's scope path with the child's own
// name appended; the tree is kept acyclic by construction (AddContextNode
// never lets a node become its own ancestor).
type ContextNode struct {
	ID          string    `json:"id"`
	Type        NodeType  `json:"type"`
	Name        string    `json:"name"`
	ParentID    string    `json:"parent_id,omitempty"`
	ChildrenIDs []string  `json:"children_ids,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
	Weight      float64   `json:"weight"`
	RefCount    int       `json:"ref_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Relation is the closed set of how a rule relates its source to its
// target node.
type Relation string

const (
	RelationPrefers  Relation = "PREFERS"
	RelationAvoids   Relation = "AVOIDS"
	RelationRequires Relation = "REQUIRES"
	RelationExpertIn Relation = "EXPERT_IN"
	RelationLearning Relation = "LEARNING"
	RelationUses     Relation = "USES"
)

// RelationForSignalType maps a signal's type to the relation a newly
// created rule should carry, per the scientific-evolve create branch.
func RelationForSignalType(t SignalType) Relation {
	switch t {
	case SignalPreference:
		return RelationPrefers
	case SignalAversion:
		return RelationAvoids
	case SignalExpertise:
		return RelationExpertIn
	case SignalCorrection:
		return RelationPrefers
	case SignalWorkflow:
		return RelationUses
	default:
		return RelationPrefers
	}
}

// RuleState is the closed set of lifecycle states a ScopedRule can be
// in. It is never set directly by callers; it is always derived from
// Confidence via StateForConfidence.
type RuleState string

const (
	StateHypothesis  RuleState = "HYPOTHESIS"
	StateShadow      RuleState = "SHADOW"
	StateValidating  RuleState = "VALIDATING"
	StateEstablished RuleState = "ESTABLISHED"
	StateDeprecated  RuleState = "DEPRECATED"
)

// Confidence thresholds governing the state<->confidence coherence
// invariant. A rule's State must always equal StateForConfidence(Confidence).
const (
	EstablishedThreshold = 0.8
	ValidatingThreshold  = 0.6
	ShadowThreshold      = 0.4
	HypothesisThreshold  = 0.2
)

// StateForConfidence derives the lifecycle state dictated by a
// confidence value. It is the single source of truth for the
// state<->confidence coherence invariant; every rule mutation must
// reassign State from this function's result, never set it ad hoc.
func StateForConfidence(confidence float64) RuleState {
	switch {
	case confidence >= EstablishedThreshold:
		return StateEstablished
	case confidence >= ValidatingThreshold:
		return StateValidating
	case confidence >= ShadowThreshold:
		return StateShadow
	case confidence >= HypothesisThreshold:
		return StateHypothesis
	default:
		return StateDeprecated
	}
}

// ScopedRule is the central persistent entity: a learned statement
// attached to a scope, with a confidence-derived lifecycle state.
type ScopedRule struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	ScopePath        []string  `json:"scope_path"`
	TargetNode       string    `json:"target_node"`
	SourceNode       string    `json:"source_node"`
	Relation         Relation  `json:"relation"`
	Confidence       float64   `json:"confidence"`
	State            RuleState `json:"state"`
	ValidationCount  int       `json:"validation_count"`
	RejectionCount   int       `json:"rejection_count"`
	SourceCount      int       `json:"source_count"`
	Weight           float64   `json:"weight"`
	Embedding        []float64 `json:"embedding,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	LastActivated    time.Time `json:"last_activated"`
	PromotedFrom     string    `json:"promoted_from,omitempty"`
}

// clampConfidence keeps a rule's confidence within [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Validate boosts a rule's confidence (positive reinforcement),
// increments ValidationCount and SourceCount, and re-derives State.
// now is passed in explicitly so callers control the clock (tests use
// fixed timestamps; production callers pass time.Now()).
func (r *ScopedRule) Validate(boost float64, now time.Time) {
	r.Confidence = clampConfidence(r.Confidence + boost)
	r.ValidationCount++
	r.SourceCount++
	r.State = StateForConfidence(r.Confidence)
	r.UpdatedAt = now
	r.LastActivated = now
}

// Reject penalizes a rule's confidence, increments RejectionCount, and
// re-derives State.
func (r *ScopedRule) Reject(penalty float64, now time.Time) {
	r.Confidence = clampConfidence(r.Confidence - penalty)
	r.RejectionCount++
	r.State = StateForConfidence(r.Confidence)
	r.UpdatedAt = now
}

// HypothesisState is the closed set of lifecycle states for the legacy
// hypothesis-based evolution pipeline.
type HypothesisState string

const (
	HypothesisPending    HypothesisState = "PENDING"
	HypothesisValidating HypothesisState = "VALIDATING"
	HypothesisPromoted   HypothesisState = "PROMOTED"
	HypothesisRejected   HypothesisState = "REJECTED"
	HypothesisExpired    HypothesisState = "EXPIRED"
)

// Hypothesis is a candidate rule awaiting enough corroborating signals
// to be promoted into a ScopedRule, or enough contradicting signals to
// be rejected, or simple staleness to expire.
type Hypothesis struct {
	ID                     string          `json:"id"`
	Content                string          `json:"content"`
	ScopePath              []string        `json:"scope_path"`
	TargetNode             string          `json:"target_node"`
	SourceNode             string          `json:"source_node"`
	Relation               Relation        `json:"relation"`
	Confidence             float64         `json:"confidence"`
	State                  HypothesisState `json:"state"`
	Validations            int             `json:"validations"`
	Rejections             int             `json:"rejections"`
	ExpiresAt              time.Time       `json:"expires_at"`
	ValidationInteractions int             `json:"validation_interactions"`
	Embedding              []float64       `json:"embedding,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// UserGoal is a high-priority constraint ("Law") that decays in
// priority over time unless reinforced.
type UserGoal struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	ScopePath      []string   `json:"scope_path"`
	Priority       int        `json:"priority"`
	Confidence     float64    `json:"confidence"`
	Expiry         *time.Time `json:"expiry,omitempty"`
	HalfLifeDays   float64    `json:"half_life_days"`
	LastReinforced time.Time  `json:"last_reinforced"`
}

// DecayPriority computes the goal's effective priority at the given
// time: priority halves every HalfLifeDays since it was last
// reinforced, floored, and never below 1.
func (g *UserGoal) DecayPriority(now time.Time) int {
	halfLife := g.HalfLifeDays
	if halfLife <= 0 {
		halfLife = 7
	}
	days := now.Sub(g.LastReinforced).Hours() / 24
	if days < 0 {
		days = 0
	}
	decayed := float64(g.Priority) * math.Pow(0.5, days/halfLife)
	floored := int(math.Floor(decayed))
	if floored < 1 {
		return 1
	}
	return floored
}

// FactSource records how a UserFact was obtained.
type FactSource string

const (
	FactObservation FactSource = "observation"
	FactExplicit    FactSource = "explicit"
	FactInferred    FactSource = "inferred"
)

// UserFact is a low-priority observational preference, overridden by
// any conflicting UserGoal in the same scope.
type UserFact struct {
	ID              string     `json:"id"`
	Content         string     `json:"content"`
	ScopePath       []string   `json:"scope_path"`
	Priority        int        `json:"priority"`
	Confidence      float64    `json:"confidence"`
	ValidationCount int        `json:"validation_count"`
	Source          FactSource `json:"source"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CollaborationRequest is a structured prompt-to-the-user, produced
// when a new signal conflicts with a rule of sufficient severity. It
// is never mutated after creation.
type CollaborationRequest struct {
	ID              string    `json:"id"`
	TriggerSignal   Signal    `json:"trigger_signal"`
	ConflictingRule string    `json:"conflicting_rule"`
	Reason          string    `json:"reason"`
	ProposedOptions []string  `json:"proposed_options"`
	CreatedAt       time.Time `json:"created_at"`
}

// CanonicalCollaborationOptions are the three options every
// CollaborationRequest offers the user.
var CanonicalCollaborationOptions = []string{"Replace", "Keep", "Create exception"}

// InteractionLog is a transient record of one observed interaction; it
// lives in the Kernel until garbage collection hands its content to
// cold storage and registers its hash as processed.
type InteractionLog struct {
	ID                string    `json:"id"`
	UserInput         string    `json:"user_input"`
	AIOutput          string    `json:"ai_output"`
	Timestamp         time.Time `json:"timestamp"`
	Processed         bool      `json:"processed"`
	CompilationTarget string    `json:"compilation_target,omitempty"`
	ContentHash       string    `json:"content_hash"`
}

// ContentHash computes the dedup key for an interaction: the first 16
// hex characters of SHA-256("user|ai").
func ContentHash(user, ai string) string {
	sum := sha256.Sum256([]byte(user + "|" + ai))
	return hex.EncodeToString(sum[:])[:16]
}

// TeachCategory is the closed set of categories the Facade's Teach
// accepts directly; any other string maps to TeachBehavioral.
type TeachCategory string

const (
	TeachPreference  TeachCategory = "preference"
	TeachStyle       TeachCategory = "style"
	TeachExpertise   TeachCategory = "expertise"
	TeachWorkflow    TeachCategory = "workflow"
	TeachPersonality TeachCategory = "personality"
	TeachBehavioral  TeachCategory = "behavioral"
)

// NormalizeTeachCategory maps an arbitrary category string to the
// closed TeachCategory set, defaulting to TeachBehavioral.
func NormalizeTeachCategory(s string) TeachCategory {
	switch TeachCategory(s) {
	case TeachPreference, TeachStyle, TeachExpertise, TeachWorkflow, TeachPersonality, TeachBehavioral:
		return TeachCategory(s)
	default:
		return TeachBehavioral
	}
}

// EvolutionMode selects which Compiler pipeline the Facade's Observe
// drives. Both pipelines are always available as Compiler methods;
// this only affects which one Observe calls automatically.
type EvolutionMode string

const (
	EvolutionScientific EvolutionMode = "scientific"
	EvolutionScoped     EvolutionMode = "scoped"
)
