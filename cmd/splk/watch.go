package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	splk "github.com/splk-dev/splk"
)

// archiveDebounce absorbs the burst of write events one out-of-process
// append produces before triggering a recompile.
const archiveDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run until interrupted, recompiling when the archive changes on disk",
	Long: `watch keeps a session open and reacts to external changes:

  - When the cold-storage archive is modified by another process, the
    kernel is recompiled from the updated interaction history and the
    state snapshot is rewritten.
  - When the project or home config.yaml changes, the session's token
    budget and log level are reloaded without a restart.

Requires an archive path (--archive, SPLK_ARCHIVE_PATH, or config file).`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ArchivePath == "" {
		return fmt.Errorf("watch requires an archive path (--archive or SPLK_ARCHIVE_PATH)")
	}

	s, err := openSession(splk.WithConfigWatch())
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer s.Close()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting archive watcher: %w", err)
	}
	defer fw.Close()

	// fsnotify.Add requires the target to exist; an archive that hasn't
	// had its first append yet has nothing to watch.
	if _, err := os.Stat(cfg.ArchivePath); err != nil {
		return fmt.Errorf("archive %s not found: %w", cfg.ArchivePath, err)
	}
	if err := fw.Add(cfg.ArchivePath); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.ArchivePath, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("watching %s (ctrl-c to stop)\n", cfg.ArchivePath)

	var pending bool
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-sigCh:
			return saveSession(s)
		case ev, ok := <-fw.Events:
			if !ok {
				return saveSession(s)
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(archiveDebounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return saveSession(s)
			}
			fmt.Fprintf(os.Stderr, "archive watch error: %v\n", err)
		case <-timer.C:
			pending = false
			report, err := s.RecompileBrain()
			if err != nil {
				fmt.Fprintf(os.Stderr, "recompile failed: %v\n", err)
				continue
			}
			if err := saveSession(s); err != nil {
				fmt.Fprintf(os.Stderr, "saving state: %v\n", err)
				continue
			}
			VerbosePrintf("recompiled: %d interactions replayed, %d rules promoted\n",
				report.InteractionsReplayed, report.RulesPromoted)
		}
	}
}
