// Package observer turns a (user_utterance, assistant_utterance) pair
// into a set of typed signals via regex and heuristics. Extraction is
// pattern-based and deterministic throughout — no statistical NLP, per
// the kernel's non-goals. The Observer is pure and stateless except for
// a small bounded ring buffer of recently emitted signals, kept only
// for diagnostics.
package observer

import (
	"regexp"
	"strings"

	"github.com/splk-dev/splk/internal/types"
)

var correctionTrigger = regexp.MustCompile(`(?i)\b(no|not|don't|dont|shouldn't|stop|wrong|incorrect|actually|instead|rather)\b`)
var correctionInstead = regexp.MustCompile(`(?i)(?:use|do|try|make it|should be)\s+(.+?)(?:\s+instead|\s*$)`)

var preferenceTrigger = regexp.MustCompile(`(?i)\b(i prefer|i like|i want|i'd rather|i would rather)\b`)
var aversionTrigger = regexp.MustCompile(`(?i)\b(don't like|dont like|hate|avoid|never use|dislike|not a fan)\b`)

var expertiseTrigger = regexp.MustCompile(`(?i)\b(i know|i understand|i'm familiar|experienced with|expert in|obviously|of course|as you know|clearly|in my experience|from my work|professionally)\b`)

var technicalVocabulary = []string{
	"api", "database", "backend", "frontend", "kubernetes", "docker",
	"microservice", "algorithm", "architecture", "optimize", "performance",
	"async", "concurrency", "framework", "compiler", "runtime", "cache",
	"schema", "endpoint", "middleware", "deployment", "container", "queue",
}

var entityTrigger = regexp.MustCompile(`\b(?:working on|my project|called|named|project)\s+[A-Z][a-zA-Z0-9_-]+`)

var goalTrigger = regexp.MustCompile(`(?i)\b(i want to|i need to|trying to|goal is|objective is|aim to)\b`)

var styleIndicators = map[string]*regexp.Regexp{
	"formal":    regexp.MustCompile(`(?i)\b(kindly|please|would you|could you|regarding)\b`),
	"casual":    regexp.MustCompile(`(?i)\b(hey|cool|awesome|nice|great|thanks|thx)\b`),
	"technical": regexp.MustCompile(`(?i)\b(implementation|architecture|algorithm|optimize|performance)\b`),
	"direct":    regexp.MustCompile(`(?i)^(do|make|create|fix|change|add|remove)\b`),
}

var personalityIndicators = map[string]*regexp.Regexp{
	"perfectionist": regexp.MustCompile(`(?i)\b(perfect|exactly|precise|correct|accurate)\b`),
	"pragmatic":     regexp.MustCompile(`(?i)\b(quick|fast|simple|easy|just|good enough)\b`),
	"curious":       regexp.MustCompile(`(?i)\b(why|how|what if|curious|wonder|interesting)\b`),
	"systematic":    regexp.MustCompile(`(?i)\b(step by step|first|then|next|finally|process)\b`),
}

var questionMarks = regexp.MustCompile(`\?`)

// RecentSignalsCap bounds the diagnostic ring buffer.
const RecentSignalsCap = 50

// Observer extracts signals from interaction text. The zero value is
// usable; New only exists to pre-size the recent-signals
// buffer.
type Observer struct {
	recent []types.Signal
}

// New constructs an Observer with an empty recent-signals buffer.
func New() *Observer {
	return &Observer{recent: make([]types.Signal, 0, RecentSignalsCap)}
}

// Observe extracts signals from one (user, ai) interaction and returns
// them alongside their aggregate confidence (the weighted mean over
// emitted signals using types.SignalWeights). Malformed or empty input
// never errors; it simply yields zero signals.
func (o *Observer) Observe(userText, aiText string) ([]types.Signal, float64) {
	if strings.TrimSpace(userText) == "" {
		return nil, 0
	}
	hash := types.ContentHash(userText, aiText)

	var signals []types.Signal
	signals = append(signals, extractCorrection(userText, hash)...)
	signals = append(signals, extractPreference(userText, hash)...)
	signals = append(signals, extractAversion(userText, hash)...)
	signals = append(signals, extractExpertise(userText, hash)...)
	signals = append(signals, extractEntity(userText, hash)...)
	signals = append(signals, extractGoal(userText, hash)...)
	signals = append(signals, extractStyle(userText, hash)...)
	signals = append(signals, extractPersonality(userText, hash)...)
	signals = append(signals, dynamicsSignals(userText, hash)...)

	signals = dedupSignals(signals)
	o.remember(signals)
	return signals, aggregateConfidence(signals)
}

func dedupSignals(signals []types.Signal) []types.Signal {
	seen := make(map[string]bool, len(signals))
	out := make([]types.Signal, 0, len(signals))
	for _, s := range signals {
		key := string(s.Type) + "|" + strings.ToLower(strings.TrimSpace(s.Content))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func aggregateConfidence(signals []types.Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var weightedSum, weightTotal float64
	for _, s := range signals {
		w := types.SignalWeights[s.Type]
		if w == 0 {
			w = 1.0
		}
		weightedSum += w * s.Confidence
		weightTotal += w
	}
	if weightTotal == 0 {
		return 0
	}
	return weightedSum / weightTotal
}

func newSignal(t types.SignalType, content string, confidence float64, hash string, meta map[string]any) types.Signal {
	return types.Signal{Type: t, Content: content, Confidence: confidence, SourceHash: hash, Metadata: meta}
}

func extractCorrection(userText, hash string) []types.Signal {
	if !correctionTrigger.MatchString(userText) {
		return nil
	}
	content := userText
	if m := correctionInstead.FindStringSubmatch(userText); len(m) > 1 {
		content = "Prefer: " + strings.TrimSpace(m[1])
	}
	return []types.Signal{newSignal(types.SignalCorrection, content, 0.85, hash, nil)}
}

func extractPreference(userText, hash string) []types.Signal {
	loc := preferenceTrigger.FindStringIndex(userText)
	if loc == nil {
		return nil
	}
	tail := strings.TrimSpace(userText[loc[1]:])
	if tail == "" {
		return nil
	}
	if len(tail) > 100 {
		tail = tail[:100]
	}
	return []types.Signal{newSignal(types.SignalPreference, tail, 0.7, hash, nil)}
}

func extractAversion(userText, hash string) []types.Signal {
	loc := aversionTrigger.FindStringIndex(userText)
	if loc == nil {
		return nil
	}
	tail := strings.TrimSpace(userText[loc[1]:])
	if len(tail) > 100 {
		tail = tail[:100]
	}
	return []types.Signal{newSignal(types.SignalAversion, "Avoid: "+tail, 0.7, hash, nil)}
}

func extractExpertise(userText, hash string) []types.Signal {
	if expertiseTrigger.MatchString(userText) {
		return []types.Signal{newSignal(types.SignalExpertise, "Expert: general", 0.65, hash, nil)}
	}
	lower := strings.ToLower(userText)
	count := 0
	var matched []string
	for _, term := range technicalVocabulary {
		if strings.Contains(lower, term) {
			count++
			matched = append(matched, term)
			if count >= 3 {
				break
			}
		}
	}
	if count >= 3 {
		domain := inferDomain(matched)
		return []types.Signal{newSignal(types.SignalExpertise, "Expert: "+domain, 0.6, hash, nil)}
	}
	return nil
}

func inferDomain(terms []string) string {
	for _, t := range terms {
		switch t {
		case "frontend":
			return "frontend"
		case "backend", "api", "database":
			return "backend"
		case "kubernetes", "docker", "deployment", "container":
			return "devops"
		}
	}
	return "general"
}

func extractEntity(userText, hash string) []types.Signal {
	m := entityTrigger.FindString(userText)
	if m == "" {
		return nil
	}
	fields := strings.Fields(m)
	name := fields[len(fields)-1]
	return []types.Signal{newSignal(types.SignalEntity, name, 0.6, hash, nil)}
}

func extractGoal(userText, hash string) []types.Signal {
	loc := goalTrigger.FindStringIndex(userText)
	if loc == nil {
		return nil
	}
	tail := strings.TrimSpace(userText[loc[1]:])
	if len(tail) > 150 {
		tail = tail[:150]
	}
	if tail == "" {
		return nil
	}
	return []types.Signal{newSignal(types.SignalGoal, tail, 0.65, hash, nil)}
}

func extractStyle(userText, hash string) []types.Signal {
	var signals []types.Signal
	for label, pattern := range styleIndicators {
		if pattern.MatchString(userText) {
			signals = append(signals, newSignal(types.SignalStyle, "style:"+label, 0.5, hash, nil))
		}
	}
	return signals
}

func extractPersonality(userText, hash string) []types.Signal {
	var signals []types.Signal
	for label, pattern := range personalityIndicators {
		if pattern.MatchString(userText) {
			signals = append(signals, newSignal(types.SignalPersonality, "trait:"+label, 0.45, hash, nil))
		}
	}
	return signals
}

// dynamicsSignals applies the length/question-count heuristics that do
// not depend on keyword matching.
func dynamicsSignals(userText, hash string) []types.Signal {
	var signals []types.Signal
	length := len(userText)
	switch {
	case length < 50:
		signals = append(signals, newSignal(types.SignalStyle, "style:concise_questions", 0.4, hash, nil))
	case length > 300:
		signals = append(signals, newSignal(types.SignalStyle, "style:detailed_context", 0.4, hash, nil))
	}
	if len(questionMarks.FindAllString(userText, -1)) > 2 {
		signals = append(signals, newSignal(types.SignalStyle, "style:multi_question", 0.4, hash, nil))
	}
	return signals
}

func (o *Observer) remember(signals []types.Signal) {
	o.recent = append(o.recent, signals...)
	if len(o.recent) > RecentSignalsCap {
		o.recent = o.recent[len(o.recent)-RecentSignalsCap:]
	}
}

// RecentSignals returns a snapshot of the diagnostic ring buffer.
func (o *Observer) RecentSignals() []types.Signal {
	out := make([]types.Signal, len(o.recent))
	copy(out, o.recent)
	return out
}

// ClearRecent empties the diagnostic ring buffer.
func (o *Observer) ClearRecent() {
	o.recent = o.recent[:0]
}
