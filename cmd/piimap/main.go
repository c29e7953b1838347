// Package main is the entry point for the piimap CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/piimap/piimap/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "piimap",
		Short: "PIImap data discovery service",
		Long:  `PIImap discovers, classifies, and traces personally identifiable information across databases, object stores, and document trees.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(scanCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
