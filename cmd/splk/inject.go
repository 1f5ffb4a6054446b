package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var injectCmd = &cobra.Command{
	Use:   "inject [query]",
	Short: "Print the system prompt relevant to a query",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInject,
}

func init() {
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) error {
	var query string
	if len(args) > 0 {
		query = args[0]
	}

	s, err := openSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	result := s.Inject(query, maxTokens)

	if GetOutput() == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(result.SystemPrompt)
	if GetVerbose() {
		fmt.Printf("\n[rules_used=%v estimated_tokens=%d]\n", result.RulesUsed, result.EstimatedTokens)
	}
	return nil
}
