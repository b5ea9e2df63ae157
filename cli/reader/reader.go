// Package reader provides read-only access to stored inspection data for
// the list and stats commands.
package reader

import (
	"context"
	"fmt"

	lodelibrary "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pngdoctor/lode"
	"github.com/justapithecus/pngdoctor/policy"
)

// ReportQuery selects stored reports. Empty fields match everything.
type ReportQuery struct {
	Source  string
	Day     string
	Verdict string
	RunID   string
	// Limit caps listed reports; zero means no cap. Stats ignore it.
	Limit int
}

func (q ReportQuery) filter() lode.ReportFilter {
	return lode.ReportFilter{
		Source:  q.Source,
		Day:     q.Day,
		Verdict: q.Verdict,
		RunID:   q.RunID,
		Limit:   q.Limit,
	}
}

// Reader abstracts read-only data access for CLI commands.
type Reader interface {
	// ListReports returns stored reports, oldest first.
	ListReports(ctx context.Context, q ReportQuery) ([]ReportItem, error)
	// StatsReports aggregates every stored report matching q.
	StatsReports(ctx context.Context, q ReportQuery) (*ReportStats, error)
	// StatsMetrics returns the latest run metrics record.
	StatsMetrics(ctx context.Context, runID, source string) (*MetricsSnapshot, error)
}

// LodeReader reads from a Lode dataset.
type LodeReader struct {
	ds lodelibrary.Dataset
}

// NewLodeReader creates a reader over ds.
func NewLodeReader(ds lodelibrary.Dataset) *LodeReader {
	return &LodeReader{ds: ds}
}

// ListReports implements Reader.
func (r *LodeReader) ListReports(ctx context.Context, q ReportQuery) ([]ReportItem, error) {
	records, err := lode.QueryReports(ctx, r.ds, q.filter())
	if err != nil {
		return nil, err
	}

	items := make([]ReportItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toReportItem(rec))
	}
	return items, nil
}

// StatsReports implements Reader.
func (r *LodeReader) StatsReports(ctx context.Context, q ReportQuery) (*ReportStats, error) {
	q.Limit = 0
	records, err := lode.QueryReports(ctx, r.ds, q.filter())
	if err != nil {
		return nil, err
	}

	stats := &ReportStats{
		ByCategory: make(map[string]int64),
		BySource:   make(map[string]int),
	}
	for _, rec := range records {
		stats.Total++
		switch rec.Verdict {
		case "accept":
			stats.Accepted++
		case "reject":
			stats.Rejected++
		case "error":
			stats.Failed++
		}
		switch policy.Action(rec.Decision) {
		case policy.Halt:
			stats.Halted++
		case policy.ProceedDegraded:
			stats.Degraded++
		}
		stats.Chunks += int64(rec.ChunkCount)
		stats.Violations += int64(rec.ViolationCount)
		for _, c := range rec.Categories {
			stats.ByCategory[c]++
		}
		stats.BySource[rec.Source]++
	}
	return stats, nil
}

// StatsMetrics implements Reader.
func (r *LodeReader) StatsMetrics(ctx context.Context, runID, source string) (*MetricsSnapshot, error) {
	record, err := lode.QueryLatestMetrics(ctx, r.ds, runID, source)
	if err != nil {
		return nil, err
	}
	snap, err := ParseMetricsRecord(record)
	if err != nil {
		return nil, fmt.Errorf("parse metrics record: %w", err)
	}
	return snap, nil
}

func toReportItem(rec lode.ReportRecord) ReportItem {
	categories := rec.Categories
	if categories == nil {
		categories = []string{}
	}
	return ReportItem{
		PassID:     rec.PassID,
		RunID:      rec.RunID,
		File:       rec.File,
		Source:     rec.Source,
		Day:        rec.Day,
		Verdict:    rec.Verdict,
		Decision:   rec.Decision,
		Chunks:     rec.ChunkCount,
		Violations: rec.ViolationCount,
		Categories: categories,
		StartedAt:  rec.StartedAt,
	}
}
