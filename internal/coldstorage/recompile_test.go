package coldstorage

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/kernel"
	"github.com/splk-dev/splk/internal/types"
)

func TestRecompileBrain_ReplaysArchivedInteractions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.jsonl.gz")
	c := New(path)

	content := "I prefer using TypeScript for all new frontend code"
	logs := make([]types.InteractionLog, 0, 4)
	for i := 0; i < 4; i++ {
		logs = append(logs, types.InteractionLog{
			ID:          uniqueID(i),
			UserInput:   content,
			AIOutput:    "got it",
			Timestamp:   time.Now(),
			ContentHash: types.ContentHash(content, "got it"),
		})
	}
	_, err := c.ArchiveInteractions(logs)
	require.NoError(t, err)

	k := kernel.New()
	report, err := c.RecompileBrain(k)
	require.NoError(t, err)

	require.Equal(t, 4, report.EntriesProcessed)
	require.Equal(t, 4, report.InteractionsReplayed)
	require.Empty(t, report.Errors)
	require.Equal(t, 0, report.ContextNodesCreated)

	rules := k.AllScopedRules()
	require.Len(t, rules, 1, "four identical signals should promote exactly one rule")
	require.Equal(t, 1, report.RulesPromoted)
}

func TestRecompileBrain_NoArchiveIsEmptyReport(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.jsonl.gz"))
	k := kernel.New()

	report, err := c.RecompileBrain(k)
	require.NoError(t, err)
	require.Equal(t, 0, report.EntriesProcessed)
	require.Empty(t, k.AllScopedRules())
}

func TestRecompileBrain_ClearsExistingRulesAndHypotheses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.jsonl.gz")
	c := New(path)
	k := kernel.New()

	_, err := k.AddScopedRule(types.ScopedRule{Content: "stale rule", ScopePath: []string{"Global"}, TargetNode: "Global"})
	require.NoError(t, err)
	require.Len(t, k.AllScopedRules(), 1)

	_, err = c.RecompileBrain(k)
	require.NoError(t, err)
	require.Empty(t, k.AllScopedRules(), "recompile must rebuild rules from scratch, not append to the stale set")
}

func TestRecompileBrain_SkipsUnreadableEntryWithoutAborting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.jsonl.gz")
	c := New(path)

	content := "avoid tabs in Go code"
	good := types.InteractionLog{
		ID:          "good",
		UserInput:   content,
		AIOutput:    "ok",
		Timestamp:   time.Now(),
		ContentHash: types.ContentHash(content, "ok"),
	}
	_, err := c.ArchiveInteractions([]types.InteractionLog{good})
	require.NoError(t, err)

	// An Entry whose envelope parses fine but whose Data doesn't unmarshal
	// into types.InteractionLog (Timestamp isn't RFC3339) — distinct from
	// a malformed gzip line, which ReadEntries itself would already skip.
	appendEntryWithBadInteractionData(t, c.path)

	k := kernel.New()
	report, err := c.RecompileBrain(k)
	require.NoError(t, err)
	require.Equal(t, 2, report.EntriesProcessed)
	require.Equal(t, 1, report.InteractionsReplayed)
	require.Len(t, report.Errors, 1)
}

func uniqueID(i int) string {
	letters := "abcd"
	return "log-" + string(letters[i%len(letters)])
}

// appendEntryWithBadInteractionData writes one well-formed Entry envelope
// whose Data payload fails to unmarshal into types.InteractionLog.
func appendEntryWithBadInteractionData(t *testing.T, path string) {
	t.Helper()
	line := `{"entry_type":"interaction","timestamp":"2026-01-01T00:00:00Z","data":{"timestamp":"not-a-time"}}` + "\n"

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte(line))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
}
