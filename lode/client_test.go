package lode

import (
	"slices"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/internal/testutil"
	"github.com/justapithecus/pngdoctor/metrics"
	"github.com/justapithecus/pngdoctor/types"
)

var (
	cleanStream   = []types.ChunkType{"IHDR", "IDAT", "IEND"}
	brokenStream  = []types.ChunkType{"IHDR", "IDAT", "PLTE", "IEND"}
	noTerminator  = []types.ChunkType{"IHDR", "IDAT"}
	testCompleted = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
)

// testReport validates codes in-process and returns the report.
func testReport(t *testing.T, name string, codes []types.ChunkType) *doctor.Report {
	t.Helper()
	insp := doctor.New(doctor.Config{})
	r, err := insp.InspectSequence(t.Context(), name, slices.Values(testutil.Records(codes)))
	if err != nil {
		t.Fatalf("InspectSequence(%s) failed: %v", name, err)
	}
	return r
}

func testConfig() Config {
	return Config{
		Dataset: "pngdoctor",
		Source:  "uploads",
		Day:     "2026-10-19",
		RunID:   "run-123",
	}
}

func TestLodeClient_WriteReports(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig(), lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	reports := []*doctor.Report{
		testReport(t, "a.png", cleanStream),
		testReport(t, "b.png", brokenStream),
	}
	if err := client.WriteReports(t.Context(), reports); err != nil {
		t.Fatalf("WriteReports failed: %v", err)
	}

	if err := client.WriteReports(t.Context(), nil); err != nil {
		t.Errorf("WriteReports(nil) = %v, want nil", err)
	}
}

func TestLodeClient_WriteMetrics(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig(), lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	snap := metrics.Snapshot{
		PassesStarted:  2,
		PassesAccepted: 1,
		PassesRejected: 1,
		Policy:         "strict",
		Mode:           "collect-all",
		StorageBackend: "memory",
	}
	if err := client.WriteMetrics(t.Context(), snap, testCompleted); err != nil {
		t.Fatalf("WriteMetrics failed: %v", err)
	}
}

func TestNewLodeClient_Defaults(t *testing.T) {
	client, err := NewLodeClientWithFactory(Config{RunID: "r"}, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	cfg := client.Config()
	if cfg.Dataset != DefaultDataset {
		t.Errorf("Dataset = %q, want %q", cfg.Dataset, DefaultDataset)
	}
	if cfg.Source != DefaultSource {
		t.Errorf("Source = %q, want %q", cfg.Source, DefaultSource)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"plain", Config{Source: "uploads", Day: "2026-10-19"}, false},
		{"empty", Config{}, false},
		{"slash in source", Config{Source: "images/raw"}, true},
		{"equals in source", Config{Source: "a=b"}, true},
		{"slash in day", Config{Day: "2026/10/19"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewLodeClientWithFactory(Config{Source: "a/b"}, lode.NewMemoryFactory()); err == nil {
		t.Error("expected constructor to reject source with '/'")
	}
}

func TestToReportRecordMap(t *testing.T) {
	cfg := testConfig()
	r := testReport(t, "images/broken.png", brokenStream)
	record := toReportRecordMap(r, cfg)

	checks := map[string]any{
		"record_kind":     RecordKindReport,
		"pass_id":         r.PassID,
		"run_id":          "run-123",
		"file":            "images/broken.png",
		"source":          "uploads",
		"day":             r.Day(),
		"verdict":         "reject",
		"decision":        "halt",
		"mode":            "collect-all",
		"policy":          "strict",
		"chunk_count":     4,
		"violation_count": 1,
	}
	for key, want := range checks {
		if got := record[key]; got != want {
			t.Errorf("%s = %v (%T), want %v (%T)", key, got, got, want, want)
		}
	}

	types, ok := record["chunk_types"].([]string)
	if !ok || !slices.Equal(types, []string{"IHDR", "IDAT", "PLTE", "IEND"}) {
		t.Errorf("chunk_types = %v, want [IHDR IDAT PLTE IEND]", record["chunk_types"])
	}
	categories, ok := record["categories"].([]string)
	if !ok || !slices.Equal(categories, []string{"order_violation"}) {
		t.Errorf("categories = %v, want [order_violation]", record["categories"])
	}
	if _, exists := record["framing_error"]; exists {
		t.Error("framing_error should be omitted when empty")
	}
}

func TestToReportRecordMap_CleanHasEmptyCategories(t *testing.T) {
	record := toReportRecordMap(testReport(t, "ok.png", cleanStream), testConfig())
	categories, ok := record["categories"].([]string)
	if !ok || categories == nil || len(categories) != 0 {
		t.Errorf("categories = %#v, want empty non-nil slice", record["categories"])
	}
	if record["verdict"] != "accept" {
		t.Errorf("verdict = %v, want accept", record["verdict"])
	}
}

func TestToMetricsRecordMap(t *testing.T) {
	cfg := testConfig()
	snap := metrics.Snapshot{
		PassesStarted:        3,
		PassesAccepted:       1,
		PassesRejected:       2,
		ChunksObserved:       11,
		ViolationsTotal:      2,
		ViolationsByCategory: map[string]int64{"order_violation": 2},
		LodeWriteSuccess:     3,
		Policy:               "lenient",
		Mode:                 "fail-fast",
		StorageBackend:       "fs",
	}

	record := toMetricsRecordMap(snap, cfg, testCompleted)

	if record["record_kind"] != RecordKindMetrics {
		t.Errorf("record_kind = %v, want %q", record["record_kind"], RecordKindMetrics)
	}
	if record["verdict"] != VerdictNone {
		t.Errorf("verdict = %v, want %q", record["verdict"], VerdictNone)
	}
	if record["ts"] != "2026-10-19T15:30:00Z" {
		t.Errorf("ts = %v, want %q", record["ts"], "2026-10-19T15:30:00Z")
	}
	if record["passes_started_total"] != int64(3) {
		t.Errorf("passes_started_total = %v, want 3", record["passes_started_total"])
	}
	if record["chunks_observed_total"] != int64(11) {
		t.Errorf("chunks_observed_total = %v, want 11", record["chunks_observed_total"])
	}
	if record["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want run-123", record["run_id"])
	}

	byCategory, ok := record["violations_by_category"].(map[string]int64)
	if !ok {
		t.Fatalf("violations_by_category type = %T, want map[string]int64", record["violations_by_category"])
	}
	snap.ViolationsByCategory["order_violation"] = 99
	if byCategory["order_violation"] != 2 {
		t.Errorf("violations_by_category must be a copy, got %d", byCategory["order_violation"])
	}
}

func TestToMetricsRecordMap_DerivesDay(t *testing.T) {
	cfg := testConfig()
	cfg.Day = ""
	record := toMetricsRecordMap(metrics.Snapshot{}, cfg, testCompleted)
	if record["day"] != "2026-10-19" {
		t.Errorf("day = %v, want 2026-10-19", record["day"])
	}
}

func TestDeriveDay(t *testing.T) {
	local := time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	if got := DeriveDay(local); got != "2026-10-20" {
		t.Errorf("DeriveDay = %q, want 2026-10-20", got)
	}
}

func TestS3Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr bool
	}{
		{"bucket only", S3Config{Bucket: "images"}, false},
		{"full", S3Config{Bucket: "images", Prefix: "reports", Region: "us-east-1", Endpoint: "http://localhost:9000", UsePathStyle: true}, false},
		{"missing bucket", S3Config{Prefix: "reports"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path       string
		wantBucket string
		wantPrefix string
	}{
		{"my-bucket", "my-bucket", ""},
		{"my-bucket/prefix", "my-bucket", "prefix"},
		{"my-bucket/deep/nested/prefix", "my-bucket", "deep/nested/prefix"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			bucket, prefix := ParseS3Path(tt.path)
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", prefix, tt.wantPrefix)
			}
		})
	}
}

func TestNewS3StoreFactory_RequiresBucket(t *testing.T) {
	if _, err := NewS3StoreFactory(t.Context(), S3Config{}); err == nil {
		t.Error("expected error for missing bucket")
	}
	if _, err := NewLodeS3Client(t.Context(), testConfig(), S3Config{}); err == nil {
		t.Error("expected error for missing bucket")
	}
}
