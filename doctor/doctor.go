// Package doctor runs validation passes over concrete inputs and reports
// the results.
//
// An Inspector frames a source (PNG bytes, a msgpack record stream, or an
// in-process sequence), drives one validator.Pass over the records,
// applies a decode policy to the verdict, and emits a Report to the
// optional Sink and Adapter. Passes share nothing but the read-only rule
// table, so any number may run concurrently.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/justapithecus/pngdoctor/adapter"
	"github.com/justapithecus/pngdoctor/framer"
	"github.com/justapithecus/pngdoctor/iox"
	"github.com/justapithecus/pngdoctor/ipc"
	"github.com/justapithecus/pngdoctor/log"
	"github.com/justapithecus/pngdoctor/metrics"
	"github.com/justapithecus/pngdoctor/policy"
	"github.com/justapithecus/pngdoctor/types"
	"github.com/justapithecus/pngdoctor/validator"
)

// StdinSource is the source name that reads standard input.
const StdinSource = "-"

// DefaultParallel is the InspectAll worker count when none is set.
const DefaultParallel = 4

// Sink persists reports and run metrics.
type Sink interface {
	// WriteReports persists a batch of reports in order.
	WriteReports(ctx context.Context, reports []*Report) error
	// WriteMetrics persists the run metrics snapshot.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
	// Close releases sink resources.
	Close() error
}

// Config configures an Inspector. Every field is optional.
type Config struct {
	// Mode is the validation mode (default CollectAll).
	Mode validator.Mode
	// Policy decides whether each stream may be decoded (default strict).
	Policy policy.Policy
	// Logger is the base logger; each pass gets a child carrying pass fields.
	Logger *log.Logger
	// Collector records run metrics. All Collector methods are nil-safe.
	Collector *metrics.Collector
	// Sink receives every report. Sink failures are returned to the caller.
	Sink Sink
	// Adapter receives one event per report. Publish failures are logged only.
	Adapter adapter.Adapter
	// MaxFileSize caps the bytes read from one PNG source.
	MaxFileSize int64
	// Records makes InspectFile read msgpack chunk-record streams
	// instead of PNG bytes.
	Records bool
	// Parallel bounds InspectAll concurrency.
	Parallel int
	// RunID labels adapter events and the run report.
	RunID string
	// StoragePath is reported in adapter events.
	StoragePath string
}

// Inspector runs validation passes.
type Inspector struct {
	cfg Config
}

// New creates an Inspector.
func New(cfg Config) *Inspector {
	if cfg.Policy == nil {
		cfg.Policy = policy.NewStrictPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = DefaultParallel
	}
	return &Inspector{cfg: cfg}
}

// Policy returns the inspector's decode policy.
func (i *Inspector) Policy() policy.Policy { return i.cfg.Policy }

// InspectFile validates the PNG file (or record stream, with Records set)
// at path. "-" reads stdin. A file that cannot be opened yields an error
// report, not an error.
func (i *Inspector) InspectFile(ctx context.Context, path string) (*Report, error) {
	if path == StdinSource {
		return i.inspectInput(ctx, path, os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		meta := types.NewPassMeta(path)
		return i.failed(ctx, meta, fmt.Errorf("open: %w", err))
	}
	defer iox.DiscardClose(f)

	return i.inspectInput(ctx, path, f)
}

func (i *Inspector) inspectInput(ctx context.Context, name string, r io.Reader) (*Report, error) {
	if i.cfg.Records {
		return i.InspectRecords(ctx, name, r)
	}
	return i.InspectReader(ctx, name, r)
}

// InspectReader frames PNG bytes from r and validates the chunk stream.
func (i *Inspector) InspectReader(ctx context.Context, name string, r io.Reader) (*Report, error) {
	dec := framer.NewDecoder(r, framer.WithMaxFileSize(i.cfg.MaxFileSize))
	report, err := i.inspect(ctx, types.NewPassMeta(name), dec.ReadChunk)
	if report != nil {
		report.BytesRead = dec.BytesRead()
	}
	if err != nil {
		return report, err
	}
	return report, i.emit(ctx, report)
}

// InspectRecords validates a msgpack chunk-record stream from r.
func (i *Inspector) InspectRecords(ctx context.Context, name string, r io.Reader) (*Report, error) {
	stream := ipc.Records(r)
	report, err := i.inspect(ctx, types.NewPassMeta(name), stream.Next)
	if err != nil {
		return report, err
	}
	if report.Failed() {
		i.cfg.Collector.IncIPCDecodeErrors()
	}
	return report, i.emit(ctx, report)
}

// InspectSequence validates an in-process record sequence.
func (i *Inspector) InspectSequence(ctx context.Context, name string, seq iter.Seq[types.ChunkRecord]) (*Report, error) {
	if seq == nil {
		return nil, validator.ErrNilSequence
	}
	next, stop := iter.Pull(seq)
	defer stop()

	pull := func() (types.ChunkRecord, error) {
		rec, ok := next()
		if !ok {
			return types.ChunkRecord{}, io.EOF
		}
		return rec, nil
	}
	report, err := i.inspect(ctx, types.NewPassMeta(name), pull)
	if err != nil {
		return report, err
	}
	return report, i.emit(ctx, report)
}

// inspect drives one pass over next until io.EOF, a read failure, or a
// fail-fast stop. Read failures and malformed records produce an error
// report. Context cancellation is returned as an error.
func (i *Inspector) inspect(ctx context.Context, meta *types.PassMeta, next func() (types.ChunkRecord, error)) (*Report, error) {
	start := time.Now()
	logger := i.cfg.Logger.ForPass(meta)
	report := newReport(meta, i.cfg.Mode, i.cfg.Policy.Name())
	pass := validator.NewPass(i.cfg.Mode)

	i.cfg.Collector.IncPassStarted()
	logger.Debug("pass started", map[string]any{"mode": i.cfg.Mode.String()})

	for !pass.Stopped() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("inspect %s: %w", meta.Source, err)
		}

		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.DurationMs = time.Since(start).Milliseconds()
			return i.readFailed(logger, report, pass, err), nil
		}

		if err := pass.Observe(rec); err != nil {
			if errors.Is(err, validator.ErrInvalidRecord) {
				report.DurationMs = time.Since(start).Milliseconds()
				return i.readFailed(logger, report, pass, err), nil
			}
			return nil, fmt.Errorf("inspect %s: %w", meta.Source, err)
		}
		report.addChunk(rec)
	}

	verdict := pass.Finish()
	report.setVerdict(verdict)
	decision := i.cfg.Policy.Decide(verdict)
	report.setDecision(decision)
	report.DurationMs = time.Since(start).Milliseconds()

	i.record(report)
	logger.Info("pass completed", map[string]any{
		"outcome":    string(report.Outcome),
		"chunks":     len(report.Chunks),
		"violations": len(report.Violations),
		"decision":   string(decision.Action),
	})
	for _, v := range verdict.Violations {
		logger.Debug("violation", map[string]any{
			"category":   string(v.Category),
			"chunk_type": string(v.ChunkType()),
			"ordinal":    v.Ordinal(),
			"message":    v.Message,
		})
	}
	return report, nil
}

// readFailed finalizes a report whose source could not be read to the end.
// Violations detected before the failure are kept; end-of-stream checks
// are not run since the stream has no trustworthy end.
func (i *Inspector) readFailed(logger *log.Logger, report *Report, pass *validator.Pass, err error) *Report {
	report.setVerdict(validator.Verdict{Violations: pass.Violations(), Chunks: pass.Count()})
	report.setFramingError(err)
	report.Decision = &ReportDecision{Action: string(policy.Halt), Reason: report.FramingError}

	i.record(report)
	logger.Warn("pass failed", map[string]any{
		"error":  err.Error(),
		"chunks": len(report.Chunks),
	})
	return report
}

// failed builds and emits an error report for a source that never opened.
func (i *Inspector) failed(ctx context.Context, meta *types.PassMeta, err error) (*Report, error) {
	i.cfg.Collector.IncPassStarted()
	report := newReport(meta, i.cfg.Mode, i.cfg.Policy.Name())
	report.setFramingError(err)
	report.Decision = &ReportDecision{Action: string(policy.Halt), Reason: report.FramingError}
	i.record(report)
	i.cfg.Logger.ForPass(meta).Warn("pass failed", map[string]any{"error": err.Error()})
	return report, i.emit(ctx, report)
}

func (i *Inspector) record(report *Report) {
	c := i.cfg.Collector
	c.AddChunks(int64(len(report.Chunks)))
	for _, v := range report.Violations {
		c.IncViolation(v.Category)
	}
	switch report.Outcome {
	case OutcomeAccept:
		c.IncPassAccepted()
	case OutcomeReject:
		c.IncPassRejected()
	default:
		c.IncFramingError()
	}
}

// emit hands the report to the sink and adapter.
func (i *Inspector) emit(ctx context.Context, report *Report) error {
	var sinkErr error
	if i.cfg.Sink != nil {
		if err := i.cfg.Sink.WriteReports(ctx, []*Report{report}); err != nil {
			sinkErr = fmt.Errorf("persist report for %s: %w", report.Source, err)
		}
	}

	if i.cfg.Adapter != nil {
		if err := i.cfg.Adapter.Publish(ctx, report.Event(i.cfg.RunID, i.cfg.StoragePath)); err != nil {
			i.cfg.Collector.IncAdapterPublishFailure()
			i.cfg.Logger.Warn("adapter publish failed (best effort)", map[string]any{
				"source": report.Source,
				"error":  err.Error(),
			})
		} else {
			i.cfg.Collector.IncAdapterPublishSuccess()
		}
	}
	return sinkErr
}
