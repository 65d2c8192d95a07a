package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Terraform security review agent",
	Long: `Sentinel reviews Terraform configurations with a planner and a
tool-using executor: it diagrams resources and permissions, writes a
vulnerability report, remediates the configuration and diagrams the result.

It also turns infrastructure inventories into security relationship graphs.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default sentinel.yaml in the working directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(indexCmd)
}
