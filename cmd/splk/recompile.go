package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var recompileCmd = &cobra.Command{
	Use:   "recompile",
	Short: "Rebuild rules and hypotheses by replaying the archive's interaction log",
	Args:  cobra.NoArgs,
	RunE:  runRecompile,
}

func init() {
	rootCmd.AddCommand(recompileCmd)
}

func runRecompile(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	report, err := s.RecompileBrain()
	if err != nil {
		return fmt.Errorf("recompiling: %w", err)
	}

	if err := saveSession(s); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	if GetOutput() == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("entries_processed: %d\n", report.EntriesProcessed)
	fmt.Printf("interactions_replayed: %d\n", report.InteractionsReplayed)
	fmt.Printf("signals_extracted: %d\n", report.SignalsExtracted)
	fmt.Printf("hypotheses_created: %d\n", report.HypothesesCreated)
	fmt.Printf("rules_promoted: %d\n", report.RulesPromoted)
	if len(report.Errors) > 0 {
		fmt.Printf("errors: %v\n", report.Errors)
	}
	return nil
}
