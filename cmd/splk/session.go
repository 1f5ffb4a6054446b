package main

import (
	"os"

	splk "github.com/splk-dev/splk"
	"github.com/splk-dev/splk/internal/config"
	"github.com/splk-dev/splk/internal/logging"
	"github.com/splk-dev/splk/internal/types"
)

// loadConfig resolves the precedence chain (flags > env > project/home
// YAML > defaults) for this invocation's persistent flags.
func loadConfig() (*config.Config, error) {
	return config.Load(&config.Config{
		ArchivePath:      archivePath,
		ArchiveMaxMB:     archiveMaxMB,
		DefaultMaxTokens: maxTokens,
	})
}

// openSession constructs a Session from the precedence-resolved config
// and loads --state if it already exists. Every CLI invocation is a
// fresh process, so the on-disk snapshot at statePath is this CLI's
// only notion of continuity between commands. extra options let a
// subcommand layer on behavior the common path doesn't need (the watch
// command's live config reload).
func openSession(extra ...splk.Option) (*splk.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.LogLevel)

	opts := []splk.Option{
		splk.WithMaxRules(cfg.MaxRules),
		splk.WithMaxNodes(cfg.MaxNodes),
		splk.WithMaxHypotheses(cfg.MaxHypotheses),
		splk.WithGCThreshold(cfg.GCThreshold),
		splk.WithDefaultMaxTokens(cfg.DefaultMaxTokens),
	}
	if cfg.ArchivePath != "" {
		opts = append(opts, splk.WithArchivePath(cfg.ArchivePath, int64(cfg.ArchiveMaxMB)*1024*1024))
	}
	if cfg.EvolutionMode == "scoped" {
		opts = append(opts, splk.WithEvolutionMode(types.EvolutionScoped))
	}
	opts = append(opts, extra...)

	s := splk.New(opts...)
	if scopeFlag != "" {
		s.Kernel().SetActiveProject(scopeFlag)
	}

	if _, err := os.Stat(statePath); err == nil {
		if err := s.Load(statePath); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// saveSession persists the session's current kernel state to --state.
func saveSession(s *splk.Session) error {
	return s.Save(statePath)
}
