package lode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/metrics"
)

// RecordKind discriminator values.
const (
	RecordKindReport  = "report"
	RecordKindMetrics = "metrics"
)

// VerdictNone is the verdict partition value of metrics records.
const VerdictNone = "none"

// ReportRecord is the storage format for one inspection report.
type ReportRecord struct {
	// Record discriminator
	RecordKind string `json:"record_kind"`

	// Report fields
	ReportVersion  string   `json:"report_version"`
	PassID         string   `json:"pass_id"`
	RunID          string   `json:"run_id"`
	File           string   `json:"file"`
	StartedAt      string   `json:"started_at"`
	DurationMs     int64    `json:"duration_ms"`
	Mode           string   `json:"mode"`
	Policy         string   `json:"policy"`
	Decision       string   `json:"decision,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	ChunkCount     int      `json:"chunk_count"`
	ChunkTypes     []string `json:"chunk_types"`
	ViolationCount int      `json:"violation_count"`
	Categories     []string `json:"categories"`
	FramingError   string   `json:"framing_error,omitempty"`

	// Partition keys (used by Lode HiveLayout)
	Source  string `json:"source"`
	Day     string `json:"day"`
	Verdict string `json:"verdict"`
}

// toReportRecordMap converts a report to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
func toReportRecordMap(r *doctor.Report, cfg Config) map[string]any {
	chunkTypes := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		chunkTypes[i] = c.Type
	}
	categories := r.Categories()
	if categories == nil {
		categories = []string{}
	}

	record := map[string]any{
		"record_kind":     RecordKindReport,
		"report_version":  r.Version,
		"pass_id":         r.PassID,
		"run_id":          cfg.RunID,
		"file":            r.Source,
		"started_at":      r.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":     r.DurationMs,
		"mode":            r.Mode,
		"policy":          r.Policy,
		"chunk_count":     len(r.Chunks),
		"chunk_types":     chunkTypes,
		"violation_count": len(r.Violations),
		"categories":      categories,

		"source":  cfg.Source,
		"day":     r.Day(),
		"verdict": string(r.Outcome),
	}
	if r.Decision != nil {
		record["decision"] = r.Decision.Action
		if r.Decision.Reason != "" {
			record["reason"] = r.Decision.Reason
		}
	}
	if r.FramingError != "" {
		record["framing_error"] = r.FramingError
	}
	return record
}

// toMetricsRecordMap converts a metrics snapshot to a map for Lode storage.
func toMetricsRecordMap(snap metrics.Snapshot, cfg Config, completedAt time.Time) map[string]any {
	byCategory := make(map[string]int64, len(snap.ViolationsByCategory))
	for k, v := range snap.ViolationsByCategory {
		byCategory[k] = v
	}

	day := cfg.Day
	if day == "" {
		day = DeriveDay(completedAt)
	}

	return map[string]any{
		"record_kind": RecordKindMetrics,
		"ts":          completedAt.UTC().Format(time.RFC3339Nano),

		"passes_started_total":          snap.PassesStarted,
		"passes_accepted_total":         snap.PassesAccepted,
		"passes_rejected_total":         snap.PassesRejected,
		"framing_errors_total":          snap.FramingErrors,
		"chunks_observed_total":         snap.ChunksObserved,
		"violations_total":              snap.ViolationsTotal,
		"violations_by_category":        byCategory,
		"ipc_decode_errors_total":       snap.IPCDecodeErrors,
		"decisions_proceed_total":       snap.DecisionsProceed,
		"decisions_degraded_total":      snap.DecisionsDegraded,
		"decisions_halt_total":          snap.DecisionsHalt,
		"lode_write_success_total":      snap.LodeWriteSuccess,
		"lode_write_failure_total":      snap.LodeWriteFailure,
		"adapter_publish_success_total": snap.AdapterPublishSuccess,
		"adapter_publish_failure_total": snap.AdapterPublishFailure,

		"policy":          snap.Policy,
		"mode":            snap.Mode,
		"storage_backend": snap.StorageBackend,
		"run_id":          cfg.RunID,

		"source":  cfg.Source,
		"day":     day,
		"verdict": VerdictNone,
	}
}

// decodeReportRecord converts a raw record read back from Lode.
func decodeReportRecord(raw map[string]any) (ReportRecord, error) {
	var rec ReportRecord
	data, err := json.Marshal(raw)
	if err != nil {
		return rec, fmt.Errorf("encode raw record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode report record: %w", err)
	}
	return rec, nil
}
