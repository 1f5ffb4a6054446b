package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var teachCategory string

var teachCmd = &cobra.Command{
	Use:   "teach [instruction]",
	Short: "Force-create an established rule from an explicit instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeach,
}

func init() {
	teachCmd.Flags().StringVar(&teachCategory, "category", "behavioral", "Fallback scope category (preference, style, expertise, workflow, personality, behavioral)")
	rootCmd.AddCommand(teachCmd)
}

func runTeach(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	id, err := s.Teach(args[0], teachCategory)
	if err != nil {
		return fmt.Errorf("teaching rule: %w", err)
	}

	if err := saveSession(s); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	fmt.Printf("rule_id: %s\n", id)
	return nil
}
