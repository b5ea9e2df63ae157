package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pngdoctor/cli/reader"
	"github.com/justapithecus/pngdoctor/cli/render"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// readTimeout bounds a single Lode query from the read-only commands.
const readTimeout = 30 * time.Second

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// reportFilterFlags are the partition filters shared by list and stats.
func reportFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "source", Usage: "Filter by source partition"},
		&cli.StringFlag{Name: "day", Usage: "Filter by day partition (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "verdict", Usage: "Filter by verdict: accept, reject, error"},
		&cli.StringFlag{Name: "run-id", Usage: "Filter by run ID"},
	}
}

func reportQuery(c *cli.Context) reader.ReportQuery {
	return reader.ReportQuery{
		Source:  c.String("source"),
		Day:     c.String("day"),
		Verdict: c.String("verdict"),
		RunID:   c.String("run-id"),
		Limit:   c.Int("limit"),
	}
}

// openReader resolves storage flags and opens a Lode reader.
func openReader(ctx context.Context, c *cli.Context) (reader.Reader, error) {
	sc, err := readStorage(c)
	if err != nil {
		return nil, err
	}
	ds, err := buildReadDataset(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage reader: %w", err)
	}
	return reader.NewLodeReader(ds), nil
}

// ListCommand returns the list command with subcommands.
// List returns thin slices (not inspect-level detail).
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored validation results",
		Subcommands: []*cli.Command{
			listReportsCommand(),
		},
	}
}

func listReportsCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), StorageFlags()...)
	flags = append(flags, reportFilterFlags()...)
	flags = append(flags, &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of reports to return (0 = no limit)",
		Value: 0,
	})
	return &cli.Command{
		Name:   "reports",
		Usage:  "List stored reports",
		Flags:  flags,
		Action: listReportsAction,
	}
}

func listReportsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	rd, err := openReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	q := reportQuery(c)
	results, err := rd.ListReports(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to read reports from Lode: %w", err)
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(results) > listWarningThreshold && q.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(results))
	}

	return r.Render(results)
}
