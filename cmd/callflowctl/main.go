// Package main is the entry point for callflowctl, an operator CLI for previewing schedules,
// checking agent availability, building Zoho search criteria and calling NodeService.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for callflowctl
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "callflowctl",
		Short:         "Operator tooling for the callflow backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newCronCmd(), newAvailabilityCmd(), newCriteriaCmd(), newNodeCmd())
	return rootCmd
}
