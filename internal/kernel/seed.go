package kernel

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/splk-dev/splk/internal/types"
)

// SeedGoal is the on-disk representation of a UserGoal in a seed file:
// a versioned YAML document teams can check in so a fresh kernel starts
// with their standing goals instead of an empty map.
type SeedGoal struct {
	ID           string   `yaml:"id"`
	Content      string   `yaml:"content"`
	ScopePath    []string `yaml:"scope_path,omitempty"`
	Priority     int      `yaml:"priority"`
	Confidence   float64  `yaml:"confidence"`
	HalfLifeDays float64  `yaml:"half_life_days,omitempty"`
	ExpiryDays   float64  `yaml:"expiry_days,omitempty"`
}

// SeedFile is the top-level structure of a goal seed YAML file.
type SeedFile struct {
	Version int        `yaml:"version"`
	Goals   []SeedGoal `yaml:"goals"`
}

// SeedValidationError describes a validation problem with a specific
// seed goal field.
type SeedValidationError struct {
	GoalID  string
	Field   string
	Message string
}

func (e SeedValidationError) Error() string {
	return fmt.Sprintf("seed goal %q field %q: %s", e.GoalID, e.Field, e.Message)
}

// seedKebabRe matches kebab-case identifiers (e.g. "ship-weekly").
var seedKebabRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// supportedSeedVersions enumerates the seed-file schema versions this
// loader accepts.
var supportedSeedVersions = map[int]bool{1: true}

// LoadSeedFile reads and parses a goal seed YAML file, defaulting
// Priority to 10 and HalfLifeDays to 7 for any entry that omits them.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if !supportedSeedVersions[sf.Version] {
		return nil, fmt.Errorf("unsupported seed version %d (expected 1)", sf.Version)
	}

	for i := range sf.Goals {
		if sf.Goals[i].Priority == 0 {
			sf.Goals[i].Priority = 10
		}
		if sf.Goals[i].HalfLifeDays == 0 {
			sf.Goals[i].HalfLifeDays = 7
		}
		if sf.Goals[i].Confidence == 0 {
			sf.Goals[i].Confidence = 1.0
		}
	}
	return &sf, nil
}

// ValidateSeedFile checks a SeedFile for structural correctness.
// Returns an empty slice if all entries are valid.
func ValidateSeedFile(sf *SeedFile) []SeedValidationError {
	var errs []SeedValidationError
	seen := make(map[string]bool)
	for _, g := range sf.Goals {
		errs = append(errs, validateSeedGoalID(g, seen)...)
		if g.Content == "" {
			errs = append(errs, SeedValidationError{GoalID: g.ID, Field: "content", Message: "required"})
		}
		if g.Priority < 1 || g.Priority > 100 {
			errs = append(errs, SeedValidationError{GoalID: g.ID, Field: "priority", Message: "must be 1-100"})
		}
	}
	return errs
}

func validateSeedGoalID(g SeedGoal, seen map[string]bool) []SeedValidationError {
	var errs []SeedValidationError
	if g.ID == "" {
		return append(errs, SeedValidationError{GoalID: g.ID, Field: "id", Message: "required"})
	}
	if seen[g.ID] {
		errs = append(errs, SeedValidationError{GoalID: g.ID, Field: "id", Message: "duplicate"})
	}
	seen[g.ID] = true
	if !seedKebabRe.MatchString(g.ID) {
		errs = append(errs, SeedValidationError{GoalID: g.ID, Field: "id", Message: "must be kebab-case"})
	}
	return errs
}

// SeedGoals loads a seed file from path, validates it, and adds every
// entry to the kernel as a UserGoal. It returns the number of goals
// added, or the first validation error encountered.
func (k *Kernel) SeedGoals(path string) (int, error) {
	sf, err := LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	if errs := ValidateSeedFile(sf); len(errs) > 0 {
		return 0, types.NewKernelError(types.KindValidation, errs[0].Error(), map[string]any{"error_count": len(errs)})
	}

	now := time.Now()
	var added int
	for _, g := range sf.Goals {
		goal := types.UserGoal{
			Content:        g.Content,
			ScopePath:      g.ScopePath,
			Priority:       g.Priority,
			Confidence:     g.Confidence,
			HalfLifeDays:   g.HalfLifeDays,
			LastReinforced: now,
		}
		if g.ExpiryDays > 0 {
			expiry := now.Add(time.Duration(g.ExpiryDays * 24 * float64(time.Hour)))
			goal.Expiry = &expiry
		}
		if _, err := k.AddGoal(goal); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
