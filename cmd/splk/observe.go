package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var observeNoEvolve bool

var observeCmd = &cobra.Command{
	Use:   "observe [user-input] [ai-output]",
	Short: "Feed a (user, ai) interaction to the kernel",
	Args:  cobra.ExactArgs(2),
	RunE:  runObserve,
}

func init() {
	observeCmd.Flags().BoolVar(&observeNoEvolve, "no-evolve", false, "Log and extract signals but skip evolution")
	rootCmd.AddCommand(observeCmd)
}

func runObserve(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	result := s.Observe(args[0], args[1], !observeNoEvolve)

	if err := saveSession(s); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	if GetOutput() == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("status: %s\n", result.Status)
	if result.LogID != "" {
		fmt.Printf("log_id: %s\n", result.LogID)
		fmt.Printf("signals_extracted: %d\n", result.SignalsExtracted)
	}
	return nil
}
