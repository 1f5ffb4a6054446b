package compiler

import "github.com/splk-dev/splk/internal/types"

// expertPrefix and domainExpertisePrefix are the literal content prefixes
// an EXPERTISE signal carries; the demonstrated level they imply differs
// ("Expert:" is a stronger claim than "Domain expertise:").
const (
	expertPrefix          = "Expert:"
	domainExpertisePrefix = "Domain expertise:"
	avoidPrefix           = "Avoid:"
	stylePrefix           = "style:"

	expertDemonstratedLevel          = 0.8
	domainExpertiseDemonstratedLevel = 0.6
)

var preferenceLanguages = []string{"python", "javascript", "typescript", "rust", "go", "java"}
var preferenceTools = []string{"react", "vue", "angular", "fastapi", "django", "flask"}

// styleTag maps one literal style-signal tag to the dimension it nudges
// and the target value it nudges toward.
type styleTag struct {
	dimension string
	target    float64
}

var styleTagMap = map[string]styleTag{
	"formal":             {"formality", 0.8},
	"casual":             {"formality", 0.2},
	"technical":          {"technicality", 0.8},
	"simple":             {"technicality", 0.2},
	"concise":            {"verbosity", 0.2},
	"concise_questions":  {"verbosity", 0.2},
	"detailed":           {"verbosity", 0.8},
	"detailed_context":   {"verbosity", 0.8},
	"direct":             {"directness", 0.8},
	"diplomatic":         {"directness", 0.2},
	"creative":           {"creativity", 0.8},
	"conventional":       {"creativity", 0.2},
	"fast":               {"pace", 0.8},
	"thorough":           {"pace", 0.2},
}

// updateProfile folds EXPERTISE, PREFERENCE, AVERSION, and GOAL signals
// into the kernel's singleton UserProfile, mirroring the per-batch
// profile-update step of the evolution pipeline.
func (c *Compiler) updateProfile(signals []types.Signal) {
	for _, sig := range signals {
		switch sig.Type {
		case types.SignalExpertise:
			c.applyExpertiseSignal(sig)
		case types.SignalPreference:
			c.applyPreferenceSignal(sig)
		case types.SignalAversion:
			c.applyAversionSignal(sig)
		case types.SignalGoal:
			content := sig.Content
			c.kernel.MutateProfile(func(p *types.UserProfile) { p.AddActiveGoal(content) })
		}
	}
}

func (c *Compiler) applyExpertiseSignal(sig types.Signal) {
	var domain string
	var level float64
	switch {
	case hasPrefix(sig.Content, expertPrefix):
		domain = trimPrefixSpace(sig.Content, expertPrefix)
		level = expertDemonstratedLevel
	case hasPrefix(sig.Content, domainExpertisePrefix):
		domain = trimPrefixSpace(sig.Content, domainExpertisePrefix)
		level = domainExpertiseDemonstratedLevel
	default:
		return
	}
	if domain == "" {
		return
	}
	c.kernel.MutateProfile(func(p *types.UserProfile) { p.UpdateExpertise(domain, level) })
}

func (c *Compiler) applyPreferenceSignal(sig types.Signal) {
	lower := normalizeContent(sig.Content)
	for _, lang := range preferenceLanguages {
		if containsWord(lower, lang) {
			c.kernel.MutateProfile(func(p *types.UserProfile) { p.AddPreference("language", lang, true) })
		}
	}
	for _, tool := range preferenceTools {
		if containsWord(lower, tool) {
			c.kernel.MutateProfile(func(p *types.UserProfile) { p.AddPreference("tool", tool, true) })
		}
	}
}

func (c *Compiler) applyAversionSignal(sig types.Signal) {
	if !hasPrefix(sig.Content, avoidPrefix) {
		return
	}
	item := trimPrefixSpace(sig.Content, avoidPrefix)
	if item == "" {
		return
	}
	c.kernel.MutateProfile(func(p *types.UserProfile) { p.AddPreference("tool", item, false) })
}

// updateStyle folds STYLE signals into the kernel's singleton style
// vector, one Update call per exact tag match.
func (c *Compiler) updateStyle(signals []types.Signal) {
	for _, sig := range signals {
		if sig.Type != types.SignalStyle {
			continue
		}
		tag := sig.Content
		if hasPrefix(tag, stylePrefix) {
			tag = trimPrefixSpace(tag, stylePrefix)
		}
		mapping, ok := styleTagMap[tag]
		if !ok {
			continue
		}
		strength := sig.Confidence
		c.kernel.MutateProfile(func(p *types.UserProfile) {
			p.StyleVector.Update(mapping.dimension, mapping.target, strength)
		})
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func trimPrefixSpace(s, prefix string) string {
	rest := s[len(prefix):]
	for len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return rest
}

func containsWord(lowerContent, word string) bool {
	return matchesKeyword(lowerContent, word)
}
