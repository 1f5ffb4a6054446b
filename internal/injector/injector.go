// Package injector assembles the deterministic "mission briefing"
// system prompt handed to a downstream LLM: the top established rules,
// active goals, and non-conflicting facts relevant to a query's scope,
// trimmed at a line boundary to fit a character budget.
package injector

import (
	"fmt"
	"strings"
	"time"

	"github.com/splk-dev/splk/internal/compiler"
	"github.com/splk-dev/splk/internal/kernel"
	"github.com/splk-dev/splk/internal/types"
)

// timeNow is swapped out by tests that need deterministic decayed
// priorities in the rendered briefing.
var timeNow = time.Now

// DefaultMaxTokens is the default token budget for an injected prompt.
const DefaultMaxTokens = 1500

// CharsPerToken is the conservative chars-per-token heuristic used to
// convert the token budget into a character budget; SPLK carries no
// tokenizer dependency.
const CharsPerToken = 4

const (
	topRules = 5
	topGoals = 5
	topFacts = 5
)

// briefingHeader opens every prompt, even for an empty kernel.
const briefingHeader = "# MISSION BRIEFING\nYou are the user's Semantic Twin.\n"

// EstimateTokens applies the chars/4 heuristic to estimate a string's
// token count.
func EstimateTokens(s string) int {
	return len(s) / CharsPerToken
}

// Result is what Inject returns: the assembled prompt plus the rule IDs
// that fed it and an estimated token cost.
type Result struct {
	SystemPrompt    string   `json:"system_prompt"`
	RulesUsed       []string `json:"rules_used"`
	EstimatedTokens int      `json:"estimated_tokens"`
}

// GenerateSystemPrompt detects the query's scope, gathers the top
// ESTABLISHED rules (sorted by confidence*weight), active goals (by
// decayed priority), and non-conflicting facts (by confidence) for that
// scope, and renders the fixed mission-briefing markdown, trimming to
// maxTokens*4 characters (DefaultMaxTokens when maxTokens <= 0) if the
// assembled text overruns the budget. Sections with nothing to say are
// omitted; an empty kernel yields the header alone.
func GenerateSystemPrompt(k *kernel.Kernel, query string, maxTokens int) Result {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	scopePath, _ := compiler.DetectScope(query, nil)

	rules := onlyEstablished(k.QueryScopedRules(scopePath, "", 0))
	if len(rules) > topRules {
		rules = rules[:topRules]
	}
	goals := k.GetActiveGoals(scopePath)
	if len(goals) > topGoals {
		goals = goals[:topGoals]
	}
	facts := k.GetFactsNotConflicting(scopePath)
	if len(facts) > topFacts {
		facts = facts[:topFacts]
	}

	prompt := renderBriefing(rules, goals, facts)

	budget := maxTokens * CharsPerToken
	if len(prompt) > budget {
		prompt = trimToCharBudget(prompt, budget)
	}

	ruleIDs := make([]string, len(rules))
	for i, r := range rules {
		ruleIDs[i] = r.ID
	}

	return Result{
		SystemPrompt:    prompt,
		RulesUsed:       ruleIDs,
		EstimatedTokens: EstimateTokens(prompt),
	}
}

func onlyEstablished(rules []types.ScopedRule) []types.ScopedRule {
	out := rules[:0]
	for _, r := range rules {
		if r.State == types.StateEstablished {
			out = append(out, r)
		}
	}
	return out
}

// scopeLabel renders a scope path for a briefing line: "Global" for the
// empty path, the names joined with " > " otherwise.
func scopeLabel(path []string) string {
	if len(path) == 0 {
		return "Global"
	}
	return strings.Join(path, " > ")
}

func renderBriefing(rules []types.ScopedRule, goals []types.UserGoal, facts []types.UserFact) string {
	var sb strings.Builder
	sb.WriteString(briefingHeader)

	if len(goals) > 0 {
		sb.WriteString("\n## CORE DIRECTIVES (Laws - MUST FOLLOW)\n")
		for _, g := range goals {
			sb.WriteString(fmt.Sprintf("- [%s] %s (Priority: %d)\n", scopeLabel(g.ScopePath), g.Content, g.DecayPriority(timeNow())))
		}
	}

	if len(facts) > 0 {
		sb.WriteString("\n## PREFERENCES (Follow unless conflicts with Laws)\n")
		for _, f := range facts {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", scopeLabel(f.ScopePath), f.Content))
		}
	}

	if len(rules) > 0 {
		sb.WriteString("\n## VERIFIED BEHAVIORS\n")
		for _, r := range rules {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", scopeLabel(r.ScopePath), r.Content))
		}
	}

	return sb.String()
}

// trimToCharBudget truncates at a line boundary when possible, leaving
// room for a truncation marker.
func trimToCharBudget(output string, budget int) string {
	if len(output) <= budget {
		return output
	}
	lines := strings.Split(output, "\n")
	var result strings.Builder
	for _, line := range lines {
		if result.Len()+len(line)+1 > budget-32 {
			break
		}
		result.WriteString(line)
		result.WriteString("\n")
	}
	result.WriteString("\n*[truncated to fit token budget]*\n")
	return result.String()
}
