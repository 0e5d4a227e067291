package main

import (
	"fmt"
	"os"

	"github.com/goodtune/sitetime/internal/config"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitetime",
	Short: "sitetime - Per-domain browsing time tracker",
	Long: `sitetime records how long the focused browser tab spends on each web
domain, per calendar day, and shows the totals in a terminal dashboard.
Browser-side code reports tab and window events to the local bridge API.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.Config, string, error) {
	path, err := storage.ExpandHome(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, path, nil
}
