package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Export the kernel's state to a snapshot file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	if err := s.Save(args[0]); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	fmt.Printf("saved to %s\n", args[0])
	return nil
}
