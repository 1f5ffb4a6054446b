package observer

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/splk-dev/splk/internal/types"
)

var extensionLanguages = map[string]string{
	".py":   "Python",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".go":   "Go",
	".rs":   "Rust",
	".java": "Java",
	".rb":   "Ruby",
	".php":  "PHP",
	".swift": "Swift",
	".kt":   "Kotlin",
	".cpp":  "C++",
	".cc":   "C++",
	".cs":   "C#",
}

// terminalNoise matches lines that carry no signal: shell invocations,
// progress bars, spinners, and generated-directory churn.
var terminalNoise = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\$\s`),
	regexp.MustCompile(`^(ls|cd|npm|yarn|pip|git|make|cargo|go)\s`),
	regexp.MustCompile(`\[=*\]\s*\d+/\d+`),
	regexp.MustCompile(`[|/\-\\]\s*$`),
	regexp.MustCompile(`node_modules`),
	regexp.MustCompile(`__pycache__`),
}

var terminalErrorWord = regexp.MustCompile(`(?i)\b(error|traceback)\b`)

// ObserveIDE infers the language from a file's extension and emits one
// CONTEXT signal tagged with stream=ide.
func ObserveIDE(filePath, lineContent string) []types.Signal {
	ext := strings.ToLower(filepath.Ext(filePath))
	lang, ok := extensionLanguages[ext]
	if !ok {
		return nil
	}
	hash := types.ContentHash(filePath, lineContent)
	return []types.Signal{
		newSignal(types.SignalContext, lang, 0.5, hash, map[string]any{
			"stream":    string(types.StreamIDE),
			"file_path": filePath,
		}),
	}
}

// filterTerminalNoise drops shell-prompt noise, progress indicators,
// spinners, and generated-directory churn from a batch of terminal
// lines, keeping everything else.
func filterTerminalNoise(lines []string) []string {
	var kept []string
	for _, line := range lines {
		noisy := false
		for _, pattern := range terminalNoise {
			if pattern.MatchString(line) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return kept
}

// FilterTerminalNoise is the exported entry point for the terminal
// noise filter, used directly by tests and by ObserveTerminal.
func FilterTerminalNoise(lines []string) []string {
	return filterTerminalNoise(lines)
}

// ObserveTerminal filters noise from a batch of terminal lines and, if
// the remainder mentions an error or traceback, emits one CORRECTION
// signal tagged with stream=terminal.
func ObserveTerminal(lines []string) []types.Signal {
	kept := filterTerminalNoise(lines)
	remainder := strings.Join(kept, "\n")
	if remainder == "" || !terminalErrorWord.MatchString(remainder) {
		return nil
	}
	hash := types.ContentHash(remainder, "")
	return []types.Signal{
		newSignal(types.SignalCorrection, remainder, 0.6, hash, map[string]any{
			"stream": string(types.StreamTerminal),
		}),
	}
}

// DefaultMinDwell is the default dwell time an IDE file must accumulate
// before it is considered "attended".
const DefaultMinDwell = 15 * time.Second

type fileAttention struct {
	firstSeenAt   time.Time
	hasInteracted bool
}

// AttentionFilter gates IDE observations on a file having been open for
// at least MinDwell and having had some user interaction, so that
// background/unattended files never contribute signals.
type AttentionFilter struct {
	MinDwell time.Duration
	files    map[string]*fileAttention
}

// NewAttentionFilter constructs an AttentionFilter with the default
// dwell time.
func NewAttentionFilter() *AttentionFilter {
	return &AttentionFilter{MinDwell: DefaultMinDwell, files: make(map[string]*fileAttention)}
}

// Touch records that a file became visible at the given time, if it is
// not already tracked.
func (f *AttentionFilter) Touch(filePath string, now time.Time) {
	if _, ok := f.files[filePath]; ok {
		return
	}
	f.files[filePath] = &fileAttention{firstSeenAt: now}
}

// Interact marks a file as having had a user interaction.
func (f *AttentionFilter) Interact(filePath string) {
	state, ok := f.files[filePath]
	if !ok {
		state = &fileAttention{}
		f.files[filePath] = state
	}
	state.hasInteracted = true
}

// Attended reports whether a file has accumulated enough dwell time and
// has had an interaction.
func (f *AttentionFilter) Attended(filePath string, now time.Time) bool {
	state, ok := f.files[filePath]
	if !ok {
		return false
	}
	minDwell := f.MinDwell
	if minDwell <= 0 {
		minDwell = DefaultMinDwell
	}
	return now.Sub(state.firstSeenAt) >= minDwell && state.hasInteracted
}

// ObserveIDEAttended emits IDE signals only for attended files; calls
// for unattended files yield zero signals instead of an error.
func (f *AttentionFilter) ObserveIDEAttended(filePath, lineContent string, now time.Time) []types.Signal {
	if !f.Attended(filePath, now) {
		return nil
	}
	return ObserveIDE(filePath, lineContent)
}
