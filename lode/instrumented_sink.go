package lode

import (
	"context"
	"time"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/metrics"
)

// InstrumentedSink wraps a doctor.Sink and records write metrics.
// Each WriteReports call increments lode_write_success or
// lode_write_failure on the collector. Metrics writes are not counted:
// they happen after the snapshot they persist was taken.
type InstrumentedSink struct {
	inner     doctor.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner doctor.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteReports delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteReports(ctx context.Context, reports []*doctor.Report) error {
	err := s.inner.WriteReports(ctx, reports)
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// WriteMetrics delegates to the inner sink.
func (s *InstrumentedSink) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return s.inner.WriteMetrics(ctx, snap, completedAt)
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ doctor.Sink = (*InstrumentedSink)(nil)
