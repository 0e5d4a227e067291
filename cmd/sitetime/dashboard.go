package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goodtune/sitetime/internal/dashboard"
	"github.com/goodtune/sitetime/internal/dashboard/tui"
	"github.com/spf13/cobra"
)

var dashboardRange string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the interactive dashboard",
	Long:  `Show per-domain totals in the terminal, updating live as the tracker writes.`,
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashboardRange, "range", "r", "", "Initial range: today, week or all-time (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	// The TUI owns stdout.
	logger := setupLogger(quietLogging(cfg.Logging), os.Stderr)

	rng, err := pickRange(dashboardRange, cfg.Dashboard.DefaultRange)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, closer, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	view := dashboard.NewView(src, rng, dashboard.WithChartLimit(cfg.Dashboard.ChartLimit))
	initial, err := view.Load(ctx)
	if err != nil {
		return err
	}

	changes, err := view.Watch(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Live updates unavailable")
		changes = nil
	}

	p := tea.NewProgram(tui.NewModel(view, changes, initial), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}

// pickRange resolves the --range flag, falling back to the configured default.
func pickRange(flag, configured string) (dashboard.Range, error) {
	if flag == "" {
		flag = configured
	}
	if flag == "" {
		return dashboard.DefaultRange, nil
	}
	return dashboard.ParseRange(flag)
}
