package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// ReportFilter selects report records. Empty fields match everything.
type ReportFilter struct {
	Source  string
	Day     string
	Verdict string
	RunID   string
	// Limit caps the number of returned records; zero means no cap.
	Limit int
}

func (f ReportFilter) matchesSnapshot(snap *lode.DatasetSnapshot) bool {
	return snapshotMatchesFilter(snap, "record_kind", RecordKindReport) &&
		snapshotMatchesFilter(snap, "source", f.Source) &&
		snapshotMatchesFilter(snap, "day", f.Day) &&
		snapshotMatchesFilter(snap, "verdict", f.Verdict)
}

// Manifest paths are a coarse pre-filter; record fields are authoritative.
func (f ReportFilter) matchesRecord(rec map[string]any) bool {
	if rec["record_kind"] != RecordKindReport {
		return false
	}
	for key, want := range map[string]string{
		"source":  f.Source,
		"day":     f.Day,
		"verdict": f.Verdict,
		"run_id":  f.RunID,
	} {
		if want != "" && toString(rec[key]) != want {
			return false
		}
	}
	return true
}

// QueryReports reads report records matching filter, oldest snapshot first.
func QueryReports(ctx context.Context, ds lode.Dataset, filter ReportFilter) ([]ReportRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, fmt.Sprintf("%s/snapshots", ds.ID()))
	}

	var out []ReportRecord
	for _, snap := range snapshots {
		if !filter.matchesSnapshot(snap) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		for _, item := range data {
			raw, ok := item.(map[string]any)
			if !ok || !filter.matchesRecord(raw) {
				continue
			}
			rec, err := decodeReportRecord(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// QueryLatestMetrics finds and reads the most recent metrics record.
// Filters by runID and source if non-empty.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, runID, source string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, fmt.Sprintf("%s/snapshots", ds.ID()))
	}

	// Snapshots are ordered by creation time; walk latest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "record_kind", RecordKindMetrics) ||
			!snapshotMatchesFilter(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if runID != "" && toString(record["run_id"]) != runID {
				continue
			}
			if source != "" && toString(record["source"]) != source {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoMetricsFound
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
