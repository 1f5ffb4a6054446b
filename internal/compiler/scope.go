package compiler

import (
	"regexp"
	"strings"
)

// scopeKeyword pairs the alternative spellings of a keyword with the
// canonical scope-path element they resolve to. Tables are scanned in
// order; the first keyword present in the signal content wins the
// class, per the scientific-evolve scope-detection contract.
type scopeKeyword struct {
	alternatives []string
	canonical    string
}

var languageKeywords = []scopeKeyword{
	{[]string{"python"}, "Python"},
	{[]string{"javascript"}, "JavaScript"},
	{[]string{"typescript"}, "TypeScript"},
	{[]string{"java"}, "Java"},
	{[]string{"rust"}, "Rust"},
	{[]string{"golang", "go"}, "Go"},
	{[]string{"ruby"}, "Ruby"},
	{[]string{"php"}, "PHP"},
	{[]string{"swift"}, "Swift"},
	{[]string{"kotlin"}, "Kotlin"},
	{[]string{"c++", "cpp"}, "C++"},
	{[]string{"c#", "csharp"}, "C#"},
}

var frameworkKeywords = []scopeKeyword{
	{[]string{"fastapi"}, "FastAPI"},
	{[]string{"django"}, "Django"},
	{[]string{"flask"}, "Flask"},
	{[]string{"react"}, "React"},
	{[]string{"vue"}, "Vue"},
	{[]string{"angular"}, "Angular"},
	{[]string{"express"}, "Express"},
	{[]string{"next.js"}, "Next.js"},
	{[]string{"spring"}, "Spring"},
	{[]string{"rails"}, "Rails"},
}

var domainKeywords = []scopeKeyword{
	{[]string{"backend"}, "Backend"},
	{[]string{"frontend"}, "Frontend"},
	{[]string{"fullstack"}, "Fullstack"},
	{[]string{"api"}, "API"},
	{[]string{"database"}, "Database"},
	{[]string{"ml"}, "ML"},
	{[]string{"devops"}, "DevOps"},
	{[]string{"mobile"}, "Mobile"},
	{[]string{"web"}, "Web"},
}

// symbolKeyword reports whether a keyword contains characters outside
// [a-z0-9.], for which a \b-bounded regex is unreliable (RE2's \b is
// defined purely in terms of word characters).
func symbolKeyword(kw string) bool {
	for _, c := range kw {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '.' {
			return true
		}
	}
	return false
}

// wordBoundaryRegexes holds one compiled regex per plain keyword,
// built once at init. The keyword tables are closed, and DetectScope
// runs concurrently from Observe callers, so the map must stay
// read-only after init; no lock is needed as long as it does.
var wordBoundaryRegexes = buildWordBoundaryRegexes()

func buildWordBoundaryRegexes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, table := range [][]scopeKeyword{languageKeywords, frameworkKeywords, domainKeywords} {
		for _, entry := range table {
			for _, alt := range entry.alternatives {
				if !symbolKeyword(alt) {
					out[alt] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alt) + `\b`)
				}
			}
		}
	}
	return out
}

// matchesKeyword reports whether kw appears in lowerContent, using
// word boundaries for plain keywords (to avoid "go" matching inside
// "going") and plain substring containment for keywords carrying
// symbols rarely seen as part of a larger word ("c++", "c#").
func matchesKeyword(lowerContent, kw string) bool {
	if symbolKeyword(kw) {
		return strings.Contains(lowerContent, kw)
	}
	re, ok := wordBoundaryRegexes[kw]
	if !ok {
		// Keyword outside the precompiled tables; compile without
		// caching so this stays safe under concurrent callers.
		re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return re.MatchString(lowerContent)
}

// firstMatch scans a keyword table in order and returns the canonical
// name of the first class whose alternatives appear in lowerContent.
func firstMatch(lowerContent string, table []scopeKeyword) (string, bool) {
	for _, entry := range table {
		for _, alt := range entry.alternatives {
			if matchesKeyword(lowerContent, alt) {
				return entry.canonical, true
			}
		}
	}
	return "", false
}

// DetectScope resolves a signal's scope path and target node: language,
// then framework, then domain, each class contributing at most one
// scope-path element; metadata's
// "project" key is appended last whenever present. A signal matching
// nothing (and carrying no project) scopes to ["Global"] / "global".
func DetectScope(content string, metadata map[string]any) (scopePath []string, targetNode string) {
	lower := strings.ToLower(content)

	if lang, ok := firstMatch(lower, languageKeywords); ok {
		scopePath = append(scopePath, lang)
	}
	if fw, ok := firstMatch(lower, frameworkKeywords); ok {
		scopePath = append(scopePath, fw)
	}
	if dom, ok := firstMatch(lower, domainKeywords); ok {
		scopePath = append(scopePath, dom)
	}
	if metadata != nil {
		if proj, ok := metadata["project"]; ok {
			if s, ok := proj.(string); ok && s != "" {
				scopePath = append(scopePath, s)
			}
		}
	}

	if len(scopePath) == 0 {
		return []string{"Global"}, "global"
	}
	return scopePath, strings.ToLower(scopePath[len(scopePath)-1])
}

// ScopeKeywordTables is the externally-observable shape of
// ScopeKeywords: one map of canonical-name -> alternative spellings
// per class (map order, so the tables' scan order is not kept).
type ScopeKeywordTables struct {
	Languages  map[string][]string `json:"languages"`
	Frameworks map[string][]string `json:"frameworks"`
	Domains    map[string][]string `json:"domains"`
}

// ScopeKeywords exposes the scope-detection keyword tables as part of
// the external contract: consumers can introspect exactly what
// triggers scope creation.
func ScopeKeywords() ScopeKeywordTables {
	return ScopeKeywordTables{
		Languages:  toMap(languageKeywords),
		Frameworks: toMap(frameworkKeywords),
		Domains:    toMap(domainKeywords),
	}
}

func toMap(table []scopeKeyword) map[string][]string {
	out := make(map[string][]string, len(table))
	for _, entry := range table {
		out[entry.canonical] = entry.alternatives
	}
	return out
}

// equalScopePath reports exact, case-sensitive, ordered equality
// between two scope paths, used by the scientific-evolve exact-scope
// match rule (as opposed to the case-insensitive prefix match the
// Kernel's QueryScopedRules uses).
func equalScopePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeContent lowercases and trims content for the "differs in
// lowercased/trimmed form" comparison the collaboration-request branch
// uses.
func normalizeContent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
