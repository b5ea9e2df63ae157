package reader

import (
	"errors"
	"slices"
	"testing"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/internal/testutil"
	"github.com/justapithecus/pngdoctor/lode"
	"github.com/justapithecus/pngdoctor/metrics"
	"github.com/justapithecus/pngdoctor/policy"
	"github.com/justapithecus/pngdoctor/types"
)

func report(t *testing.T, p policy.Policy, name string, codes ...types.ChunkType) *doctor.Report {
	t.Helper()
	insp := doctor.New(doctor.Config{Policy: p})
	r, err := insp.InspectSequence(t.Context(), name, slices.Values(testutil.Records(codes)))
	if err != nil {
		t.Fatalf("InspectSequence(%s) failed: %v", name, err)
	}
	return r
}

// seed writes four reports and one metrics record, and returns a reader
// over the same in-memory store.
func seed(t *testing.T) *LodeReader {
	t.Helper()
	store := lodelibrary.NewMemory()
	factory := func() (lodelibrary.Store, error) { return store, nil }

	uploads, err := lode.NewLodeClientWithFactory(lode.Config{Source: "uploads", RunID: "run-1"}, factory)
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	crawl, err := lode.NewLodeClientWithFactory(lode.Config{Source: "crawl", RunID: "run-2"}, factory)
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	strict := policy.NewStrictPolicy()
	lenient := policy.NewLenientPolicy()
	if err := uploads.WriteReports(t.Context(), []*doctor.Report{
		report(t, strict, "ok.png", "IHDR", "IDAT", "IEND"),
		report(t, strict, "late-palette.png", "IHDR", "IDAT", "PLTE", "IEND"),
		report(t, lenient, "late-gamma.png", "IHDR", "IDAT", "gAMA", "IEND"),
	}); err != nil {
		t.Fatalf("WriteReports(uploads) failed: %v", err)
	}
	if err := crawl.WriteReports(t.Context(), []*doctor.Report{
		report(t, strict, "cut.png", "IHDR", "IDAT"),
	}); err != nil {
		t.Fatalf("WriteReports(crawl) failed: %v", err)
	}

	snap := metrics.Snapshot{
		PassesStarted:        3,
		PassesAccepted:       1,
		PassesRejected:       2,
		ViolationsByCategory: map[string]int64{"order_violation": 2},
		Policy:               "strict",
		Mode:                 "collect-all",
		StorageBackend:       "memory",
		RunID:                "run-1",
	}
	if err := uploads.WriteMetrics(t.Context(), snap, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("WriteMetrics failed: %v", err)
	}

	ds, err := lode.NewReadDataset("", factory)
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}
	return NewLodeReader(ds)
}

func TestLodeReader_ListReports(t *testing.T) {
	r := seed(t)

	tests := []struct {
		name  string
		query ReportQuery
		want  []string
	}{
		{"all", ReportQuery{}, []string{"ok.png", "late-palette.png", "late-gamma.png", "cut.png"}},
		{"rejected", ReportQuery{Verdict: "reject"}, []string{"late-palette.png", "late-gamma.png", "cut.png"}},
		{"by source", ReportQuery{Source: "crawl"}, []string{"cut.png"}},
		{"by run", ReportQuery{RunID: "run-1", Verdict: "accept"}, []string{"ok.png"}},
		{"limit", ReportQuery{Limit: 2}, []string{"ok.png", "late-palette.png"}},
		{"no match", ReportQuery{Source: "elsewhere"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := r.ListReports(t.Context(), tt.query)
			if err != nil {
				t.Fatalf("ListReports failed: %v", err)
			}
			var files []string
			for _, it := range items {
				files = append(files, it.File)
			}
			if !slices.Equal(files, tt.want) {
				t.Errorf("files = %v, want %v", files, tt.want)
			}
		})
	}
}

func TestLodeReader_ListReports_ItemFields(t *testing.T) {
	r := seed(t)

	items, err := r.ListReports(t.Context(), ReportQuery{Source: "uploads", Limit: 2})
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	ok := items[0]
	if ok.Verdict != "accept" || ok.Decision != "proceed" || ok.Chunks != 3 || ok.Violations != 0 {
		t.Errorf("ok.png item = %+v", ok)
	}
	if ok.Categories == nil || len(ok.Categories) != 0 {
		t.Errorf("Categories = %v, want empty non-nil", ok.Categories)
	}
	if ok.RunID != "run-1" || ok.Source != "uploads" || ok.PassID == "" || ok.Day == "" {
		t.Errorf("ok.png identity = %+v", ok)
	}

	bad := items[1]
	if bad.Decision != "halt" || !slices.Equal(bad.Categories, []string{"order_violation"}) {
		t.Errorf("late-palette.png item = %+v", bad)
	}
}

func TestLodeReader_StatsReports(t *testing.T) {
	r := seed(t)

	stats, err := r.StatsReports(t.Context(), ReportQuery{Limit: 1})
	if err != nil {
		t.Fatalf("StatsReports failed: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4 (limit ignored)", stats.Total)
	}
	if stats.Accepted != 1 || stats.Rejected != 3 || stats.Failed != 0 {
		t.Errorf("accepted/rejected/failed = %d/%d/%d, want 1/3/0", stats.Accepted, stats.Rejected, stats.Failed)
	}
	if stats.Halted != 2 || stats.Degraded != 1 {
		t.Errorf("halted/degraded = %d/%d, want 2/1", stats.Halted, stats.Degraded)
	}
	if stats.Chunks != 13 {
		t.Errorf("Chunks = %d, want 13", stats.Chunks)
	}
	if stats.Violations != 3 {
		t.Errorf("Violations = %d, want 3", stats.Violations)
	}
	if stats.ByCategory["order_violation"] != 2 || stats.ByCategory["missing_terminator"] != 1 {
		t.Errorf("ByCategory = %v", stats.ByCategory)
	}
	if stats.BySource["uploads"] != 3 || stats.BySource["crawl"] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
}

func TestLodeReader_StatsReports_Empty(t *testing.T) {
	r := seed(t)

	stats, err := r.StatsReports(t.Context(), ReportQuery{Day: "1999-01-01"})
	if err != nil {
		t.Fatalf("StatsReports failed: %v", err)
	}
	if stats.Total != 0 || stats.ByCategory == nil || stats.BySource == nil {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestLodeReader_StatsMetrics(t *testing.T) {
	r := seed(t)

	snap, err := r.StatsMetrics(t.Context(), "run-1", "uploads")
	if err != nil {
		t.Fatalf("StatsMetrics failed: %v", err)
	}
	if snap.PassesStarted != 3 || snap.PassesRejected != 2 {
		t.Errorf("passes started/rejected = %d/%d, want 3/2", snap.PassesStarted, snap.PassesRejected)
	}
	if snap.ViolationsByCategory["order_violation"] != 2 {
		t.Errorf("ViolationsByCategory = %v", snap.ViolationsByCategory)
	}
	if snap.Source != "uploads" || snap.Ts != "2026-10-19T12:00:00Z" {
		t.Errorf("Source/Ts = %q/%q", snap.Source, snap.Ts)
	}

	if _, err := r.StatsMetrics(t.Context(), "run-2", ""); !errors.Is(err, lode.ErrNoMetricsFound) {
		t.Errorf("run-2 error = %v, want ErrNoMetricsFound", err)
	}
}
