package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pngdoctor/cli/render"
	"github.com/justapithecus/pngdoctor/cli/tui"
	"github.com/justapithecus/pngdoctor/lode"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated facts over stored results.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated validation statistics",
		Subcommands: []*cli.Command{
			statsReportsCommand(),
			statsMetricsCommand(),
		},
	}
}

func statsReportsCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(), StorageFlags()...)
	flags = append(flags, reportFilterFlags()...)
	return &cli.Command{
		Name:   "reports",
		Usage:  "Aggregate stored reports by outcome, category and source",
		Flags:  flags,
		Action: statsReportsAction,
	}
}

func statsReportsAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	rd, err := openReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	stats, err := rd.StatsReports(ctx, reportQuery(c))
	if err != nil {
		return fmt.Errorf("failed to read reports from Lode: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsReports, stats)
	}

	return r.Render(stats)
}

func statsMetricsCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(), StorageFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "run-id", Usage: "Read metrics for specific run ID"},
		&cli.StringFlag{Name: "source", Usage: "Filter by source partition"},
	)
	return &cli.Command{
		Name:   "metrics",
		Usage:  "Show run metrics (passes, chunks, violations, decisions, storage, adapter)",
		Flags:  flags,
		Action: statsMetricsAction,
	}
}

func statsMetricsAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	rd, err := openReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	snapshot, err := rd.StatsMetrics(ctx, c.String("run-id"), c.String("source"))
	if errors.Is(err, lode.ErrNoMetricsFound) {
		return cli.Exit("no metrics records found (run pngdoctor validate with --storage-backend first)", 1)
	}
	if err != nil {
		return fmt.Errorf("failed to read metrics from Lode: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsMetrics, snapshot)
	}

	return r.Render(snapshot)
}
