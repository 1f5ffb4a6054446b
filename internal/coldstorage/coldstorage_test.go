package coldstorage

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

func newTestArchive(t *testing.T, opts ...Option) *ColdStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.jsonl.gz")
	return New(path, opts...)
}

func TestArchiveInteractions_RoundTrip(t *testing.T) {
	c := newTestArchive(t)
	logs := []types.InteractionLog{
		{ID: "1", UserInput: "use tabs", AIOutput: "ok", Timestamp: time.Now(), ContentHash: types.ContentHash("use tabs", "ok")},
		{ID: "2", UserInput: "avoid semicolons", AIOutput: "ok", Timestamp: time.Now(), ContentHash: types.ContentHash("avoid semicolons", "ok")},
	}

	n, err := c.ArchiveInteractions(logs)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	entries, err := c.ReadEntries([]EntryType{EntryInteraction}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var got types.InteractionLog
	require.NoError(t, json.Unmarshal(entries[0].Data, &got))
	require.Equal(t, "use tabs", got.UserInput)
}

func TestArchiveInteractions_EmptyIsNoOp(t *testing.T) {
	c := newTestArchive(t)
	n, err := c.ArchiveInteractions(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	entries, err := c.ReadEntries(nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestArchiveSignals(t *testing.T) {
	c := newTestArchive(t)
	n, err := c.ArchiveSignals([]types.Signal{
		{Type: types.SignalPreference, Content: "use TypeScript", Confidence: 0.7},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	entries, err := c.ReadEntries([]EntryType{EntrySignal}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestArchiveHypothesis_CarriesReason(t *testing.T) {
	c := newTestArchive(t)
	_, err := c.ArchiveHypothesis(types.Hypothesis{ID: "h1", Content: "prefers tabs"}, "rejected")
	require.NoError(t, err)

	entries, err := c.ReadEntries([]EntryType{EntryHypothesis}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got archivedHypothesis
	require.NoError(t, json.Unmarshal(entries[0].Data, &got))
	require.Equal(t, "h1", got.ID)
	require.Equal(t, "rejected", got.Reason)
}

func TestArchiveRule_CarriesReason(t *testing.T) {
	c := newTestArchive(t)
	_, err := c.ArchiveRule(types.ScopedRule{ID: "r1", Content: "avoid tabs"}, "pruned")
	require.NoError(t, err)

	entries, err := c.ReadEntries([]EntryType{EntryRule}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got archivedRule
	require.NoError(t, json.Unmarshal(entries[0].Data, &got))
	require.Equal(t, "r1", got.ID)
	require.Equal(t, "pruned", got.Reason)
}

func TestReadEntries_FiltersByType(t *testing.T) {
	c := newTestArchive(t)
	_, err := c.ArchiveInteractions([]types.InteractionLog{{ID: "1"}})
	require.NoError(t, err)
	_, err = c.ArchiveSignals([]types.Signal{{Type: types.SignalStyle, Content: "x"}})
	require.NoError(t, err)

	entries, err := c.ReadEntries([]EntryType{EntrySignal}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, EntrySignal, entries[0].EntryType)
}

func TestReadEntries_FiltersByTimeWindow(t *testing.T) {
	var tick time.Time
	c := newTestArchive(t, withClock(func() time.Time { return tick }))

	tick = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.ArchiveInteractions([]types.InteractionLog{{ID: "early"}})
	require.NoError(t, err)

	tick = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = c.ArchiveInteractions([]types.InteractionLog{{ID: "late"}})
	require.NoError(t, err)

	after := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries, err := c.ReadEntries(nil, after, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got types.InteractionLog
	require.NoError(t, json.Unmarshal(entries[0].Data, &got))
	require.Equal(t, "late", got.ID)
}

func TestReadEntries_NoFileReturnsEmpty(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.jsonl.gz"))
	entries, err := c.ReadEntries(nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReadEntries_SkipsMalformedLinesWithoutAborting(t *testing.T) {
	c := newTestArchive(t)
	_, err := c.ArchiveInteractions([]types.InteractionLog{{ID: "good-1"}})
	require.NoError(t, err)

	// Append a gzip member whose JSON line is corrupt; ReadEntries must
	// skip it and keep scanning rather than erroring the whole read.
	appendCorruptMember(t, c.path)

	_, err = c.ArchiveInteractions([]types.InteractionLog{{ID: "good-2"}})
	require.NoError(t, err)

	entries, err := c.ReadEntries([]EntryType{EntryInteraction}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRotateIfNeeded_RenamesOversizedArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.jsonl.gz")
	c := New(path, WithMaxBytes(1))

	_, err := c.ArchiveInteractions([]types.InteractionLog{{ID: "1", UserInput: "first write exceeds one byte"}})
	require.NoError(t, err)

	_, err = c.ArchiveInteractions([]types.InteractionLog{{ID: "2"}})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "archive.jsonl_*.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one rotated file")

	require.FileExists(t, path)
}

func TestRotateIfNeeded_NoExistingFileIsNotAnError(t *testing.T) {
	c := newTestArchive(t, WithMaxBytes(1))
	require.NoError(t, c.rotateIfNeededLocked())
}

func TestDefault_ConstructorAppliesDefaults(t *testing.T) {
	c := New("whatever.jsonl.gz")
	require.Equal(t, int64(DefaultMaxArchiveBytes), c.maxBytes)
}

func appendCorruptMember(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte("{not valid json\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
}
