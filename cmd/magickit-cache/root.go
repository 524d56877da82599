package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "magickit-cache",
	Short: "MagicKit cache core",
	Long: `MagicKit cache core - dual-tier cache, invalidation, performance
monitoring and CDN helpers.

The serve command exposes Prometheus metrics and cache statistics
for operators.`,
	Version:      versionString(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "yaml config file (environment only when empty)")
}
