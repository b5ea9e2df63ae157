// Package lode persists inspection reports and run metrics to a Lode
// dataset.
//
// Records are written as JSONL under a Hive layout partitioned by
// source/day/verdict/record_kind, on the local filesystem or S3. The full
// JSON of each report is stored next to its record as a sidecar file.
// Storage failures are classified into sentinel errors (see errors.go).
package lode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/metrics"
)

// DefaultDataset is the Lode dataset ID used by pngdoctor.
const DefaultDataset = "pngdoctor"

// DefaultSource is the source partition value when none is configured.
const DefaultSource = "local"

// DeriveDay computes the partition day from a start time (YYYY-MM-DD UTC).
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds partition configuration for one run.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Source is the partition label for where the images came from.
	// It is a label, not a file path.
	Source string
	// Day is the partition day (YYYY-MM-DD UTC) for metrics records.
	// Report records use their own pass start day.
	Day string
	// RunID identifies the run on every record.
	RunID string
}

// withDefaults fills empty Dataset and Source.
func (c Config) withDefaults() Config {
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	return c
}

// Validate rejects partition values that would break the Hive layout.
func (c Config) Validate() error {
	for key, value := range map[string]string{"source": c.Source, "day": c.Day} {
		if strings.ContainsAny(value, "/=") {
			return fmt.Errorf("partition %s %q must not contain '/' or '='", key, value)
		}
	}
	return nil
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteReports writes one report record per report, preserving order.
	WriteReports(ctx context.Context, reports []*doctor.Report) error
	// WriteMetrics writes one metrics record.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed doctor.Sink. Besides the report records it
// stores each report's full JSON as a sidecar file when the client
// supports FileWriter.
type Sink struct {
	client Client
	files  FileWriter
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	s := &Sink{client: client}
	if fw, ok := client.(FileWriter); ok {
		s.files = fw
	}
	return s
}

// WriteReports implements doctor.Sink.
func (s *Sink) WriteReports(ctx context.Context, reports []*doctor.Report) error {
	if err := s.client.WriteReports(ctx, reports); err != nil {
		return err
	}
	if s.files == nil {
		return nil
	}
	for _, r := range reports {
		if err := s.files.PutReport(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// WriteMetrics implements doctor.Sink.
func (s *Sink) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return s.client.WriteMetrics(ctx, snap, completedAt)
}

// Close implements doctor.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ doctor.Sink = (*Sink)(nil)

// StubClient is a test client that records writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Reports []*doctor.Report
	Metrics []metrics.Snapshot
	Closed  bool
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteReports implements Client.
func (c *StubClient) WriteReports(_ context.Context, reports []*doctor.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reports = append(c.Reports, reports...)
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Metrics = append(c.Metrics, snap)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
