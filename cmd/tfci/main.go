package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tfci-io/tfci/internal/logging"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tfci",
		Short: "Terraform CI orchestration",
		Long: `tfci runs the Terraform validation, planning, cost estimation and
deployment steps of a CI pipeline, publishing results as idempotent PR
comments and conditional Slack notifications.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to tfci.yaml (optional)")

	rootCmd.AddCommand(
		newPRCmd(),
		newMergeCmd(),
		newRollupCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		logging.Error("tfci failed", "error", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tfci version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tfci v%s\n", version)
		},
	}
}
