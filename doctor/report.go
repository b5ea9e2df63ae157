package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/justapithecus/pngdoctor/adapter"
	"github.com/justapithecus/pngdoctor/framer"
	"github.com/justapithecus/pngdoctor/metrics"
	"github.com/justapithecus/pngdoctor/policy"
	"github.com/justapithecus/pngdoctor/types"
	"github.com/justapithecus/pngdoctor/validator"
)

// Outcome is the top-level result of inspecting one stream.
type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeReject Outcome = "reject"
	// OutcomeError means the stream could not be framed or read.
	OutcomeError Outcome = "error"
)

// Report is the per-stream inspection result.
type Report struct {
	Version      string            `json:"version" yaml:"version"`
	PassID       string            `json:"pass_id" yaml:"pass_id"`
	Source       string            `json:"source" yaml:"source"`
	StartedAt    time.Time         `json:"started_at" yaml:"started_at"`
	DurationMs   int64             `json:"duration_ms" yaml:"duration_ms"`
	Mode         string            `json:"mode" yaml:"mode"`
	Policy       string            `json:"policy" yaml:"policy"`
	Outcome      Outcome           `json:"outcome" yaml:"outcome"`
	Stopped      bool              `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	BytesRead    int64             `json:"bytes_read,omitempty" yaml:"bytes_read,omitempty"`
	Chunks       []ReportChunk     `json:"chunks" yaml:"chunks"`
	Violations   []ReportViolation `json:"violations" yaml:"violations"`
	Decision     *ReportDecision   `json:"decision,omitempty" yaml:"decision,omitempty"`
	FramingError string            `json:"framing_error,omitempty" yaml:"framing_error,omitempty"`
}

// ReportChunk is one observed chunk. Offset is -1 when the source
// carries no byte positions.
type ReportChunk struct {
	Type    string `json:"type" yaml:"type"`
	Length  int64  `json:"length" yaml:"length"`
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Offset  int64  `json:"offset" yaml:"offset"`
}

// ReportViolation is the flattened form of a validator.Violation.
type ReportViolation struct {
	Category    string `json:"category" yaml:"category"`
	ChunkType   string `json:"chunk_type,omitempty" yaml:"chunk_type,omitempty"`
	Ordinal     int    `json:"ordinal" yaml:"ordinal"`
	Rule        string `json:"rule,omitempty" yaml:"rule,omitempty"`
	Criticality string `json:"criticality" yaml:"criticality"`
	Blocking    bool   `json:"blocking" yaml:"blocking"`
	Message     string `json:"message" yaml:"message"`
}

// ReportDecision is the policy decision for the stream.
type ReportDecision struct {
	Action string   `json:"action" yaml:"action"`
	Reason string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// Halted reports whether the policy refused to decode the stream.
func (r *Report) Halted() bool {
	return r.Decision != nil && r.Decision.Action == string(policy.Halt)
}

// Failed reports whether the stream could not be framed or read.
func (r *Report) Failed() bool { return r.Outcome == OutcomeError }

// Day is the UTC partition day of the pass.
func (r *Report) Day() string { return r.StartedAt.UTC().Format("2006-01-02") }

// Categories returns the distinct violation categories, sorted.
func (r *Report) Categories() []string {
	var out []string
	for _, v := range r.Violations {
		if !slices.Contains(out, v.Category) {
			out = append(out, v.Category)
		}
	}
	slices.Sort(out)
	return out
}

// Event builds the adapter notification for the report.
func (r *Report) Event(runID, storagePath string) *adapter.ValidationCompletedEvent {
	event := &adapter.ValidationCompletedEvent{
		ReportVersion:  r.Version,
		EventType:      adapter.EventTypeValidationCompleted,
		PassID:         r.PassID,
		RunID:          runID,
		Source:         r.Source,
		Day:            r.Day(),
		Outcome:        string(r.Outcome),
		ChunkCount:     len(r.Chunks),
		ViolationCount: len(r.Violations),
		Categories:     r.Categories(),
		StoragePath:    storagePath,
		Timestamp:      r.StartedAt.UTC().Format(time.RFC3339),
		DurationMs:     r.DurationMs,
	}
	if r.Decision != nil {
		event.Decision = r.Decision.Action
	}
	return event
}

// newReport starts a report for a pass.
func newReport(meta *types.PassMeta, mode validator.Mode, policyName string) *Report {
	return &Report{
		Version:    types.ReportVersion,
		PassID:     meta.PassID,
		Source:     meta.Source,
		StartedAt:  meta.StartedAt,
		Mode:       mode.String(),
		Policy:     policyName,
		Chunks:     []ReportChunk{},
		Violations: []ReportViolation{},
	}
}

func (r *Report) addChunk(rec types.ChunkRecord) {
	r.Chunks = append(r.Chunks, ReportChunk{
		Type:    string(rec.Type),
		Length:  rec.Length,
		Ordinal: rec.Ordinal,
		Offset:  rec.Offset,
	})
}

func (r *Report) setVerdict(v validator.Verdict) {
	if v.Accepted() {
		r.Outcome = OutcomeAccept
	} else {
		r.Outcome = OutcomeReject
	}
	r.Stopped = v.Stopped
	for _, vi := range v.Violations {
		r.Violations = append(r.Violations, ReportViolation{
			Category:    string(vi.Category),
			ChunkType:   string(vi.ChunkType()),
			Ordinal:     vi.Ordinal(),
			Rule:        vi.Rule,
			Criticality: string(vi.Criticality),
			Blocking:    vi.Blocking(),
			Message:     vi.Message,
		})
	}
}

func (r *Report) setDecision(d policy.Decision) {
	rd := &ReportDecision{Action: string(d.Action), Reason: d.Reason}
	for _, t := range d.Ignore {
		rd.Ignore = append(rd.Ignore, string(t))
	}
	r.Decision = rd
}

func (r *Report) setFramingError(err error) {
	r.Outcome = OutcomeError
	r.FramingError = err.Error()
	if fe, ok := framer.IsFrameError(err); ok {
		r.FramingError = fe.Kind.String() + ": " + fe.Error()
	}
}

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	Version    string            `json:"version" yaml:"version"`
	RunID      string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	ExitCode   int               `json:"exit_code" yaml:"exit_code"`
	DurationMs int64             `json:"duration_ms" yaml:"duration_ms"`
	Policy     *ReportPolicy     `json:"policy" yaml:"policy"`
	Reports    []*Report         `json:"reports" yaml:"reports"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// ReportPolicy holds policy stats in the run report.
type ReportPolicy struct {
	Name                 string           `json:"name" yaml:"name"`
	TotalVerdicts        int64            `json:"total_verdicts" yaml:"total_verdicts"`
	Proceeded            int64            `json:"proceeded" yaml:"proceeded"`
	Degraded             int64            `json:"degraded" yaml:"degraded"`
	Halted               int64            `json:"halted" yaml:"halted"`
	ViolationsByCategory map[string]int64 `json:"violations_by_category,omitempty" yaml:"violations_by_category,omitempty"`
}

// BuildRunReport composes a RunReport from a finished run.
func BuildRunReport(result *RunResult, snap metrics.Snapshot, exitCode int) *RunReport {
	rp := &ReportPolicy{
		Name:          result.Policy,
		TotalVerdicts: result.PolicyStats.TotalVerdicts,
		Proceeded:     result.PolicyStats.Proceeded,
		Degraded:      result.PolicyStats.Degraded,
		Halted:        result.PolicyStats.Halted,
	}
	if len(result.PolicyStats.ViolationsByCategory) > 0 {
		rp.ViolationsByCategory = make(map[string]int64, len(result.PolicyStats.ViolationsByCategory))
		for k, v := range result.PolicyStats.ViolationsByCategory {
			rp.ViolationsByCategory[string(k)] = v
		}
	}

	return &RunReport{
		Version:    types.ReportVersion,
		RunID:      result.RunID,
		ExitCode:   exitCode,
		DurationMs: result.Duration.Milliseconds(),
		Policy:     rp,
		Reports:    result.Reports,
		Metrics:    &snap,
	}
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalRunReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := marshalRunReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalRunReport(report *RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
