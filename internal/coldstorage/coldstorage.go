// Package coldstorage implements the append-only archive every pruned,
// expired, or garbage-collected kernel entity is handed off to before
// it is dropped from memory. The wire format is a gzip-framed JSONL
// stream: each append writes one independent gzip member containing
// one JSON object per line, so a reader using gzip's built-in
// multistream mode sees the whole history as a single logical stream
// regardless of how many processes have appended to it over the file's
// lifetime. Appends stat the file first and rotate it aside when it
// has outgrown the size threshold, then open in append mode.
package coldstorage

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// EntryType is the closed set of archive entry kinds.
type EntryType string

const (
	EntryInteraction EntryType = "interaction"
	EntrySignal      EntryType = "signal"
	EntryHypothesis  EntryType = "hypothesis"
	EntryRule        EntryType = "rule"
)

// DefaultMaxArchiveBytes is the rotation threshold used when none is
// configured explicitly (ARCHIVE_MAX_MB defaults to 100).
const DefaultMaxArchiveBytes = 100 * 1024 * 1024

// Entry is one line of the archive stream.
type Entry struct {
	EntryType EntryType       `json:"entry_type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ColdStorage is an append-only, gzip-framed JSONL archive at a fixed
// path. All append operations are serialised by mu; concurrent callers
// queue rather than interleave their writes within a gzip member.
type ColdStorage struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	now      func() time.Time
}

// Option configures a ColdStorage at construction.
type Option func(*ColdStorage)

// WithMaxBytes overrides the rotation threshold.
func WithMaxBytes(n int64) Option { return func(c *ColdStorage) { c.maxBytes = n } }

// withClock overrides the archive's notion of "now"; used by tests that
// need deterministic rotation filenames.
func withClock(fn func() time.Time) Option { return func(c *ColdStorage) { c.now = fn } }

// New constructs a ColdStorage writing to path.
func New(path string, opts ...Option) *ColdStorage {
	c := &ColdStorage{
		path:     path,
		maxBytes: DefaultMaxArchiveBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rotateIfNeededLocked renames the current archive file to
// <stem>_<YYYYMMDD_HHMMSS><suffix> when it exceeds maxBytes, so the
// next append starts a fresh file. Absence of an existing file is not
// an error.
func (c *ColdStorage) rotateIfNeededLocked() error {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= c.maxBytes {
		return nil
	}

	ext := filepath.Ext(c.path)
	stem := strings.TrimSuffix(c.path, ext)
	rotated := fmt.Sprintf("%s_%s%s", stem, c.now().Format("20060102_150405"), ext)
	return os.Rename(c.path, rotated)
}

// appendEntries writes one Entry per item to a fresh gzip member
// appended to the archive file, rotating first if necessary. It
// returns the number of entries written.
func (c *ColdStorage) appendEntries(entryType EntryType, datas []json.RawMessage) (int, error) {
	if len(datas) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rotateIfNeededLocked(); err != nil {
		return 0, fmt.Errorf("rotating archive: %w", err)
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening archive %s: %w", c.path, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	now := c.now()
	for _, data := range datas {
		entry := Entry{EntryType: entryType, Timestamp: now, Data: data}
		line, err := json.Marshal(entry)
		if err != nil {
			gw.Close()
			return 0, fmt.Errorf("marshaling archive entry: %w", err)
		}
		if _, err := gw.Write(append(line, '\n')); err != nil {
			gw.Close()
			return 0, fmt.Errorf("writing archive entry: %w", err)
		}
	}
	if err := gw.Close(); err != nil {
		return 0, fmt.Errorf("closing archive gzip member: %w", err)
	}
	return len(datas), nil
}

func marshalAll[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// ArchiveInteractions appends every log to the archive, returning the
// count written.
func (c *ColdStorage) ArchiveInteractions(logs []types.InteractionLog) (int, error) {
	datas, err := marshalAll(logs)
	if err != nil {
		return 0, err
	}
	return c.appendEntries(EntryInteraction, datas)
}

// ArchiveSignals appends every signal to the archive, returning the
// count written.
func (c *ColdStorage) ArchiveSignals(signals []types.Signal) (int, error) {
	datas, err := marshalAll(signals)
	if err != nil {
		return 0, err
	}
	return c.appendEntries(EntrySignal, datas)
}

// archivedHypothesis wraps a Hypothesis with the reason it left the
// kernel's active map.
type archivedHypothesis struct {
	types.Hypothesis
	Reason string `json:"reason"`
}

// ArchiveHypothesis appends a single hypothesis with its drop reason
// ("promoted", "rejected", "expired", "pruned").
func (c *ColdStorage) ArchiveHypothesis(h types.Hypothesis, reason string) (int, error) {
	datas, err := marshalAll([]archivedHypothesis{{Hypothesis: h, Reason: reason}})
	if err != nil {
		return 0, err
	}
	return c.appendEntries(EntryHypothesis, datas)
}

// archivedRule wraps a ScopedRule with the reason it left the kernel's
// active map.
type archivedRule struct {
	types.ScopedRule
	Reason string `json:"reason"`
}

// ArchiveRule appends a single rule with its drop reason ("pruned",
// "deprecated").
func (c *ColdStorage) ArchiveRule(rule types.ScopedRule, reason string) (int, error) {
	datas, err := marshalAll([]archivedRule{{ScopedRule: rule, Reason: reason}})
	if err != nil {
		return 0, err
	}
	return c.appendEntries(EntryRule, datas)
}

// ReadEntries decodes every entry in the archive matching the given
// types filter (nil or empty matches all types), within the half-open
// [after, before) timestamp window (zero values leave that bound
// unconstrained). Lines that do not decode as JSON entries are silently
// skipped. A gzip read error (a truncated or corrupt member) ends the
// scan: the entries decoded before it are returned with a nil error,
// and nothing after it is read.
func (c *ColdStorage) ReadEntries(typeFilter []EntryType, after, before time.Time) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening archive %s: %w", c.path, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	gr.Multistream(true)
	defer gr.Close()

	allowed := make(map[EntryType]bool, len(typeFilter))
	for _, t := range typeFilter {
		allowed[t] = true
	}

	var entries []Entry
	scanner := bufio.NewScanner(gr)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			logging.Get(logging.CategoryColdStorage).Debugf("skipping malformed archive line: %v", err)
			continue
		}
		if len(allowed) > 0 && !allowed[e.EntryType] {
			continue
		}
		if !after.IsZero() && e.Timestamp.Before(after) {
			continue
		}
		if !before.IsZero() && !e.Timestamp.Before(before) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
