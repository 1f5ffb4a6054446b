package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load [path]",
	Short: "Restore the kernel's state from a snapshot file into --state",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	if err := s.Load(args[0]); err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if err := saveSession(s); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	fmt.Printf("loaded %s into %s\n", args[0], statePath)
	return nil
}
