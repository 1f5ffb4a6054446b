package compiler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectScope_LanguageFrameworkDomainOrder(t *testing.T) {
	scope, target := DetectScope("I prefer using FastAPI for backend Python services", nil)
	require.Equal(t, []string{"Python", "FastAPI", "Backend"}, scope)
	require.Equal(t, "backend", target)
}

func TestDetectScope_WordBoundaryAvoidsFalseMatch(t *testing.T) {
	scope, _ := DetectScope("I am going to the store", nil)
	require.Equal(t, []string{"Global"}, scope)
}

func TestDetectScope_SymbolKeywordMatchesViaSubstring(t *testing.T) {
	scope, _ := DetectScope("always prefer c++ over c for systems work", nil)
	require.Equal(t, []string{"C++"}, scope)
}

func TestDetectScope_AppendsProjectFromMetadata(t *testing.T) {
	scope, target := DetectScope("use go for this", map[string]any{"project": "splk"})
	require.Equal(t, []string{"Go", "splk"}, scope)
	require.Equal(t, "splk", target)
}

func TestDetectScope_NoMatchAndNoProjectIsGlobal(t *testing.T) {
	scope, target := DetectScope("something entirely unrelated to any keyword", nil)
	require.Equal(t, []string{"Global"}, scope)
	require.Equal(t, "global", target)
}

func TestEqualScopePath_CaseSensitiveExact(t *testing.T) {
	require.True(t, equalScopePath([]string{"Go", "Backend"}, []string{"Go", "Backend"}))
	require.False(t, equalScopePath([]string{"go", "Backend"}, []string{"Go", "Backend"}))
	require.False(t, equalScopePath([]string{"Go"}, []string{"Go", "Backend"}))
}

func TestScopeKeywords_ExposesAllThreeClasses(t *testing.T) {
	tables := ScopeKeywords()
	require.Contains(t, tables.Languages, "Go")
	require.Contains(t, tables.Frameworks, "FastAPI")
	require.Contains(t, tables.Domains, "Backend")
}

func TestDetectScope_SafeUnderConcurrentCallers(t *testing.T) {
	inputs := []string{
		"I prefer FastAPI for backend Python services",
		"use TypeScript with React on the frontend",
		"always prefer c++ for systems work",
		"something entirely unrelated to any keyword",
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				DetectScope(content, nil)
			}
		}(inputs[i%len(inputs)])
	}
	wg.Wait()
}
