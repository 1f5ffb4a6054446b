// Package config provides configuration management for SPLK.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (SPLK_*)
// 3. Project config (.splk/config.yaml in cwd)
// 4. Home config (~/.splk/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/splk-dev/splk/internal/kernel"
)

// Config holds all SPLK configuration.
type Config struct {
	// MaxRules bounds the number of ScopedRules the kernel retains.
	MaxRules int `yaml:"max_rules" json:"max_rules"`

	// MaxNodes bounds the number of ContextNodes the kernel retains.
	MaxNodes int `yaml:"max_nodes" json:"max_nodes"`

	// MaxHypotheses bounds the number of live Hypotheses.
	MaxHypotheses int `yaml:"max_hypotheses" json:"max_hypotheses"`

	// GCThreshold is the observation count between automatic
	// garbage-collection sweeps.
	GCThreshold int `yaml:"gc_threshold" json:"gc_threshold"`

	// ThreadSafety is loaded and merged like the other settings, but
	// nothing passes it to the kernel: the kernel's lock-acquire
	// timeout guard is always active whatever its value.
	ThreadSafety bool `yaml:"thread_safety" json:"thread_safety"`

	// AutoEvolve controls whether Session.Observe runs evolution by
	// default when the caller doesn't say otherwise.
	AutoEvolve bool `yaml:"auto_evolve" json:"auto_evolve"`

	// EvolutionMode selects the compiler's evolution pipeline:
	// "scientific" (default) or "scoped".
	EvolutionMode string `yaml:"evolution_mode" json:"evolution_mode"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// ArchivePath enables cold storage when non-empty.
	ArchivePath string `yaml:"archive_path" json:"archive_path"`

	// ArchiveMaxMB is the rotation threshold for the archive file, in
	// megabytes. 0 uses the archive package's built-in default.
	ArchiveMaxMB int `yaml:"archive_max_mb" json:"archive_max_mb"`

	// DefaultMaxTokens is the injector's default character/token
	// budget when a caller doesn't specify one.
	DefaultMaxTokens int `yaml:"default_max_tokens" json:"default_max_tokens"`
}

// Default config values (used in resolution and validation).
const (
	defaultEvolutionMode    = "scientific"
	defaultLogLevel         = "info"
	defaultDefaultMaxTokens = 1500
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxRules:         kernel.DefaultMaxRules,
		MaxNodes:         kernel.DefaultMaxNodes,
		MaxHypotheses:    kernel.DefaultMaxHypotheses,
		GCThreshold:      kernel.DefaultGCThreshold,
		ThreadSafety:     true,
		AutoEvolve:       true,
		EvolutionMode:    defaultEvolutionMode,
		LogLevel:         defaultLogLevel,
		DefaultMaxTokens: defaultDefaultMaxTokens,
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".splk", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("SPLK_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".splk", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	switch v {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if n, ok := getEnvInt("SPLK_MAX_RULES"); ok {
		cfg.MaxRules = n
	}
	if n, ok := getEnvInt("SPLK_MAX_NODES"); ok {
		cfg.MaxNodes = n
	}
	if n, ok := getEnvInt("SPLK_MAX_HYPOTHESES"); ok {
		cfg.MaxHypotheses = n
	}
	if n, ok := getEnvInt("SPLK_GC_THRESHOLD"); ok {
		cfg.GCThreshold = n
	}
	if v, ok := getEnvBool("SPLK_THREAD_SAFETY"); ok {
		cfg.ThreadSafety = v
	}
	if v, ok := getEnvBool("SPLK_AUTO_EVOLVE"); ok {
		cfg.AutoEvolve = v
	}
	if v := os.Getenv("SPLK_EVOLUTION_MODE"); v != "" {
		cfg.EvolutionMode = v
	}
	if v := os.Getenv("SPLK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SPLK_ARCHIVE_PATH"); v != "" {
		cfg.ArchivePath = v
	}
	if n, ok := getEnvInt("SPLK_ARCHIVE_MAX_MB"); ok {
		cfg.ArchiveMaxMB = n
	}
	if n, ok := getEnvInt("SPLK_MAX_TOKENS"); ok {
		cfg.DefaultMaxTokens = n
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence. Zero
// values in src are treated as "not set" for ints/strings; booleans
// have no sentinel and are ORed, so any layer can turn a boolean on
// but no layer can turn off one that another layer set.
func merge(dst, src *Config) *Config {
	if src.MaxRules != 0 {
		dst.MaxRules = src.MaxRules
	}
	if src.MaxNodes != 0 {
		dst.MaxNodes = src.MaxNodes
	}
	if src.MaxHypotheses != 0 {
		dst.MaxHypotheses = src.MaxHypotheses
	}
	if src.GCThreshold != 0 {
		dst.GCThreshold = src.GCThreshold
	}
	dst.ThreadSafety = src.ThreadSafety || dst.ThreadSafety
	dst.AutoEvolve = src.AutoEvolve || dst.AutoEvolve
	if src.EvolutionMode != "" {
		dst.EvolutionMode = src.EvolutionMode
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.ArchivePath != "" {
		dst.ArchivePath = src.ArchivePath
	}
	if src.ArchiveMaxMB != 0 {
		dst.ArchiveMaxMB = src.ArchiveMaxMB
	}
	if src.DefaultMaxTokens != 0 {
		dst.DefaultMaxTokens = src.DefaultMaxTokens
	}
	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.splk/config.yaml"
	SourceProject Source = ".splk/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// resolveIntField resolves an int through the precedence chain.
func resolveIntField(home, project, env, flag, def int) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != 0 {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != 0 {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != 0 {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != 0 {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	MaxRules      resolved `json:"max_rules"`
	MaxNodes      resolved `json:"max_nodes"`
	MaxHypotheses resolved `json:"max_hypotheses"`
	GCThreshold   resolved `json:"gc_threshold"`
	EvolutionMode resolved `json:"evolution_mode"`
	LogLevel      resolved `json:"log_level"`
	ArchivePath   resolved `json:"archive_path"`
	MaxTokens     resolved `json:"max_tokens"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagArchivePath string, flagMaxTokens int) *ResolvedConfig {
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var homeMaxRules, homeMaxNodes, homeMaxHypotheses, homeGCThreshold, homeMaxTokens int
	var homeEvolutionMode, homeLogLevel, homeArchivePath string
	if homeConfig != nil {
		homeMaxRules = homeConfig.MaxRules
		homeMaxNodes = homeConfig.MaxNodes
		homeMaxHypotheses = homeConfig.MaxHypotheses
		homeGCThreshold = homeConfig.GCThreshold
		homeEvolutionMode = homeConfig.EvolutionMode
		homeLogLevel = homeConfig.LogLevel
		homeArchivePath = homeConfig.ArchivePath
		homeMaxTokens = homeConfig.DefaultMaxTokens
	}

	var projectMaxRules, projectMaxNodes, projectMaxHypotheses, projectGCThreshold, projectMaxTokens int
	var projectEvolutionMode, projectLogLevel, projectArchivePath string
	if projectConfig != nil {
		projectMaxRules = projectConfig.MaxRules
		projectMaxNodes = projectConfig.MaxNodes
		projectMaxHypotheses = projectConfig.MaxHypotheses
		projectGCThreshold = projectConfig.GCThreshold
		projectEvolutionMode = projectConfig.EvolutionMode
		projectLogLevel = projectConfig.LogLevel
		projectArchivePath = projectConfig.ArchivePath
		projectMaxTokens = projectConfig.DefaultMaxTokens
	}

	envMaxRules, _ := getEnvInt("SPLK_MAX_RULES")
	envMaxNodes, _ := getEnvInt("SPLK_MAX_NODES")
	envMaxHypotheses, _ := getEnvInt("SPLK_MAX_HYPOTHESES")
	envGCThreshold, _ := getEnvInt("SPLK_GC_THRESHOLD")
	envEvolutionMode := os.Getenv("SPLK_EVOLUTION_MODE")
	envLogLevel := os.Getenv("SPLK_LOG_LEVEL")
	envArchivePath := os.Getenv("SPLK_ARCHIVE_PATH")
	envMaxTokens, _ := getEnvInt("SPLK_MAX_TOKENS")

	return &ResolvedConfig{
		MaxRules:      resolveIntField(homeMaxRules, projectMaxRules, envMaxRules, 0, kernel.DefaultMaxRules),
		MaxNodes:      resolveIntField(homeMaxNodes, projectMaxNodes, envMaxNodes, 0, kernel.DefaultMaxNodes),
		MaxHypotheses: resolveIntField(homeMaxHypotheses, projectMaxHypotheses, envMaxHypotheses, 0, kernel.DefaultMaxHypotheses),
		GCThreshold:   resolveIntField(homeGCThreshold, projectGCThreshold, envGCThreshold, 0, kernel.DefaultGCThreshold),
		EvolutionMode: resolveStringField(homeEvolutionMode, projectEvolutionMode, envEvolutionMode, "", defaultEvolutionMode),
		LogLevel:      resolveStringField(homeLogLevel, projectLogLevel, envLogLevel, "", defaultLogLevel),
		ArchivePath:   resolveStringField(homeArchivePath, projectArchivePath, envArchivePath, flagArchivePath, ""),
		MaxTokens:     resolveIntField(homeMaxTokens, projectMaxTokens, envMaxTokens, flagMaxTokens, defaultDefaultMaxTokens),
	}
}
