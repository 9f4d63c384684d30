package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "rakeplan",
	Short: "Client for the rake Planning Engine",
	Long: `rakeplan submits planning scenarios to the external Planning Engine,
tracks jobs to completion and renders the resulting rake assignment
plan with derived cost and utilization metrics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
