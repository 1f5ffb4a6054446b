// Package main is the splk CLI: a thin cobra wrapper over the splk
// session facade. Global flags live here; subcommands read them
// through the accessor functions below.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	output       string
	archivePath  string
	archiveMaxMB int
	maxTokens    int
	scopeFlag    string
	statePath    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "splk",
	Short: "Scoped Probabilistic Learning Kernel CLI",
	Long: `splk is the CLI for SPLK, a learning kernel that observes interactions,
evolves scoped rules and hypotheses about user preferences, and injects a
deterministic system prompt summarizing what it has learned.

Core commands:
  observe   Feed a (user, ai) interaction to the kernel
  teach     Force-create an established rule from an explicit instruction
  inject    Print the system prompt relevant to a query
  save      Export the kernel's state to a snapshot file
  load      Restore the kernel's state from a snapshot file
  recompile Rebuild the kernel by replaying the cold-storage archive
  watch     Recompile automatically when the archive changes on disk
  version   Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&archivePath, "archive", "", "Cold-storage archive path (enables GC archival and recompile)")
	rootCmd.PersistentFlags().IntVar(&archiveMaxMB, "archive-max-mb", 0, "Archive rotation threshold in MB (0 uses the built-in default)")
	rootCmd.PersistentFlags().IntVar(&maxTokens, "max-tokens", 0, "Token budget for inject (0 uses the built-in default)")
	rootCmd.PersistentFlags().StringVar(&scopeFlag, "scope", "", "Active project name recorded in the kernel and saved with its snapshot")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "splk_kernel.json", "Kernel snapshot file loaded at startup and saved after mutating commands")
}

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool { return verbose }

// GetOutput returns the output format for use by subcommands.
func GetOutput() string { return output }

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
