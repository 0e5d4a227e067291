package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goodtune/sitetime/internal/dashboard"
	"github.com/goodtune/sitetime/internal/dashboard/tui"
	"github.com/spf13/cobra"
)

var (
	reportRange string
	reportJSON  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a one-shot summary",
	Long:  `Print the totals, top site, domain list and chart for one range and exit.`,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportRange, "range", "r", "", "Range: today, week or all-time (default from config)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(quietLogging(cfg.Logging), os.Stderr)

	rng, err := pickRange(reportRange, cfg.Dashboard.DefaultRange)
	if err != nil {
		return err
	}

	ctx := context.Background()
	src, closer, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	view := dashboard.NewView(src, rng, dashboard.WithChartLimit(cfg.Dashboard.ChartLimit))
	summary, err := view.Load(ctx)
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), summary, reportJSON)
}

func writeReport(w io.Writer, summary dashboard.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	_, err := fmt.Fprintln(w, tui.Render(summary, tui.DefaultWidth))
	return err
}
