package types

import "time"

// StyleVector is the six-dimensional running estimate of how the user
// wants responses delivered. Every dimension lives in [0, 1]; each has
// its own confidence that grows as signals reinforce it, independent of
// the others.
type StyleVector struct {
	Formality    float64            `json:"formality"`
	Verbosity    float64            `json:"verbosity"`
	Technicality float64            `json:"technicality"`
	Directness   float64            `json:"directness"`
	Creativity   float64            `json:"creativity"`
	Pace         float64            `json:"pace"`
	LearningRate float64            `json:"learning_rate"`
	Confidence   map[string]float64 `json:"confidence"`
}

// NewStyleVector returns a StyleVector with every dimension at 0.5,
// per-dimension confidence at 0.1, and the default learning rate.
func NewStyleVector() StyleVector {
	return StyleVector{
		Formality: 0.5, Verbosity: 0.5, Technicality: 0.5,
		Directness: 0.5, Creativity: 0.5, Pace: 0.5,
		LearningRate: 0.1,
		Confidence: map[string]float64{
			"formality": 0.1, "verbosity": 0.1, "technicality": 0.1,
			"directness": 0.1, "creativity": 0.1, "pace": 0.1,
		},
	}
}

// styleDimension returns a pointer to the named dimension's field, or
// nil for an unknown dimension name.
func (s *StyleVector) styleDimension(dimension string) *float64 {
	switch dimension {
	case "formality":
		return &s.Formality
	case "verbosity":
		return &s.Verbosity
	case "technicality":
		return &s.Technicality
	case "directness":
		return &s.Directness
	case "creativity":
		return &s.Creativity
	case "pace":
		return &s.Pace
	default:
		return nil
	}
}

// Update nudges a dimension toward targetValue by an adaptive-learning-
// rate exponential moving average (strength scales the nudge, typically
// a signal's confidence), and raises that dimension's own confidence by
// 0.05, capped at 0.95.
func (s *StyleVector) Update(dimension string, targetValue, strength float64) {
	field := s.styleDimension(dimension)
	if field == nil {
		return
	}
	rate := s.LearningRate * strength
	*field = *field + rate*(targetValue-*field)
	if s.Confidence == nil {
		s.Confidence = make(map[string]float64)
	}
	next := s.Confidence[dimension] + 0.05
	if next > 0.95 {
		next = 0.95
	}
	s.Confidence[dimension] = next
}

// ToVector returns the six dimensions in a fixed, documented order.
func (s *StyleVector) ToVector() [6]float64 {
	return [6]float64{s.Formality, s.Verbosity, s.Technicality, s.Directness, s.Creativity, s.Pace}
}

// Describe renders a natural-language summary of every dimension whose
// confidence exceeds 0.3, skipping the rest as not yet well-established.
func (s *StyleVector) Describe() string {
	var out string
	describe := func(dimension, low, high string, value float64) {
		if s.Confidence[dimension] <= 0.3 {
			return
		}
		label := low
		if value >= 0.5 {
			label = high
		}
		if out != "" {
			out += ", "
		}
		out += label
	}
	describe("formality", "casual", "formal", s.Formality)
	describe("verbosity", "concise", "detailed", s.Verbosity)
	describe("technicality", "accessible", "technical", s.Technicality)
	describe("directness", "diplomatic", "direct", s.Directness)
	describe("creativity", "conventional", "creative", s.Creativity)
	describe("pace", "thorough", "fast-moving", s.Pace)
	return out
}

// UserProfile is the Kernel's singleton running model of the user: what
// they know, what they want, and how they like to be addressed. Unlike
// ScopedRule/Hypothesis, there is exactly one per kernel — it is not
// keyed by scope.
type UserProfile struct {
	ExpertiseDomains     []string           `json:"expertise_domains"`
	ExpertiseLevels      map[string]float64 `json:"expertise_levels"`
	Role                 string             `json:"role,omitempty"`
	Industry             string             `json:"industry,omitempty"`
	CurrentProjects      []string           `json:"current_projects"`
	PreferredLanguages   []string           `json:"preferred_languages"`
	PreferredTools       []string           `json:"preferred_tools"`
	AvoidedTechnologies  []string           `json:"avoided_technologies"`
	StyleVector          StyleVector        `json:"style_vector"`
	Traits               map[string]float64 `json:"traits"`
	ActiveGoals          []string           `json:"active_goals"`
	TypicalSessionLength float64            `json:"typical_session_length"`
	QuestionComplexity   float64            `json:"question_complexity"`
	IterationPreference  float64            `json:"iteration_preference"`
	TotalInteractions    int                `json:"total_interactions"`
	ProfileConfidence    float64            `json:"profile_confidence"`
	LastUpdated          time.Time          `json:"last_updated"`
}

// maxActiveGoals bounds UserProfile.ActiveGoals to the most recent N.
const maxActiveGoals = 5

// maxActiveGoalContentLen truncates a goal's content before it is
// appended to ActiveGoals.
const maxActiveGoalContentLen = 100

// NewUserProfile returns an empty profile with a 0.5 default for every
// session-shape dimension and a freshly-initialized style vector.
func NewUserProfile() UserProfile {
	return UserProfile{
		ExpertiseLevels:      make(map[string]float64),
		Traits:               make(map[string]float64),
		StyleVector:          NewStyleVector(),
		TypicalSessionLength: 0.5,
		QuestionComplexity:   0.5,
		IterationPreference:  0.5,
	}
}

// UpdateExpertise records a demonstrated skill level in domain: a known
// domain is blended 70/30 (existing/demonstrated); a new one is set
// directly.
func (p *UserProfile) UpdateExpertise(domain string, demonstratedLevel float64) {
	if p.ExpertiseLevels == nil {
		p.ExpertiseLevels = make(map[string]float64)
	}
	if current, ok := p.ExpertiseLevels[domain]; ok {
		p.ExpertiseLevels[domain] = current*0.7 + demonstratedLevel*0.3
	} else {
		p.ExpertiseLevels[domain] = demonstratedLevel
		p.ExpertiseDomains = append(p.ExpertiseDomains, domain)
	}
}

func removeString(list []string, item string) []string {
	out := list[:0]
	for _, s := range list {
		if s != item {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

// AddPreference records a positive or negative preference for item
// within category ("language" or "tool"). A positive language/tool
// preference is appended to the matching preferred list (and dropped
// from AvoidedTechnologies, if present); a negative one is appended to
// AvoidedTechnologies (and dropped from both preferred lists).
func (p *UserProfile) AddPreference(category, item string, isPositive bool) {
	if isPositive {
		p.AvoidedTechnologies = removeString(p.AvoidedTechnologies, item)
		switch category {
		case "language":
			if !containsString(p.PreferredLanguages, item) {
				p.PreferredLanguages = append(p.PreferredLanguages, item)
			}
		case "tool":
			if !containsString(p.PreferredTools, item) {
				p.PreferredTools = append(p.PreferredTools, item)
			}
		}
		return
	}
	p.PreferredLanguages = removeString(p.PreferredLanguages, item)
	p.PreferredTools = removeString(p.PreferredTools, item)
	if !containsString(p.AvoidedTechnologies, item) {
		p.AvoidedTechnologies = append(p.AvoidedTechnologies, item)
	}
}

// AddActiveGoal appends content (truncated to maxActiveGoalContentLen)
// to ActiveGoals if not already present, keeping only the
// maxActiveGoals most recent.
func (p *UserProfile) AddActiveGoal(content string) {
	if len(content) > maxActiveGoalContentLen {
		content = content[:maxActiveGoalContentLen]
	}
	if containsString(p.ActiveGoals, content) {
		return
	}
	p.ActiveGoals = append(p.ActiveGoals, content)
	if len(p.ActiveGoals) > maxActiveGoals {
		p.ActiveGoals = p.ActiveGoals[len(p.ActiveGoals)-maxActiveGoals:]
	}
}

// RecordInteraction increments TotalInteractions and re-derives
// ProfileConfidence, which approaches 0.95 asymptotically as
// TotalInteractions grows and never quite reaches it.
func (p *UserProfile) RecordInteraction(now time.Time) {
	p.TotalInteractions++
	confidence := 1.0 - (1.0 / (1.0 + float64(p.TotalInteractions)*0.1))
	if confidence > 0.95 {
		confidence = 0.95
	}
	p.ProfileConfidence = confidence
	p.LastUpdated = now
}
