package doctor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/pngdoctor/policy"
)

// RunResult aggregates the reports of one InspectAll call.
type RunResult struct {
	// RunID is copied from Config.RunID.
	RunID string
	// Policy is the decode policy name.
	Policy string
	// Reports holds one report per input path, in input order.
	Reports []*Report
	// PolicyStats is the policy's decision stats after the run.
	PolicyStats policy.Stats
	// Duration is the wall time of the whole run.
	Duration time.Duration
}

// Summary counts reports by result.
type Summary struct {
	Total    int `json:"total" yaml:"total"`
	Accepted int `json:"accepted" yaml:"accepted"`
	Rejected int `json:"rejected" yaml:"rejected"`
	Failed   int `json:"failed" yaml:"failed"`
	Halted   int `json:"halted" yaml:"halted"`
}

// Summary counts the run's reports by result.
func (r *RunResult) Summary() Summary {
	s := Summary{Total: len(r.Reports)}
	for _, rep := range r.Reports {
		switch rep.Outcome {
		case OutcomeAccept:
			s.Accepted++
		case OutcomeReject:
			s.Rejected++
		case OutcomeError:
			s.Failed++
		}
		if rep.Halted() {
			s.Halted++
		}
	}
	return s
}

// InspectAll validates every path on a bounded worker pool and returns
// the reports in input order. Storage failures are joined into the
// returned error; the result is still complete. After all passes the
// policy stats are absorbed into the collector and the metrics
// snapshot is written to the sink.
func (i *Inspector) InspectAll(ctx context.Context, paths []string) (*RunResult, error) {
	start := time.Now()
	reports := make([]*Report, len(paths))
	errs := make([]error, len(paths))

	sem := make(chan struct{}, i.cfg.Parallel)
	var wg sync.WaitGroup

dispatch:
	for idx, path := range paths {
		select {
		case <-ctx.Done():
			errs[idx] = fmt.Errorf("inspect %s: %w", path, ctx.Err())
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			reports[idx], errs[idx] = i.InspectFile(ctx, path)
		}(idx, path)
	}
	wg.Wait()

	result := &RunResult{
		RunID:    i.cfg.RunID,
		Policy:   i.cfg.Policy.Name(),
		Duration: time.Since(start),
	}
	for _, r := range reports {
		if r != nil {
			result.Reports = append(result.Reports, r)
		}
	}

	stats := i.cfg.Policy.Stats()
	result.PolicyStats = stats
	i.cfg.Collector.AbsorbPolicyStats(stats.Proceeded, stats.Degraded, stats.Halted)

	if i.cfg.Sink != nil && i.cfg.Collector != nil {
		if err := i.cfg.Sink.WriteMetrics(ctx, i.cfg.Collector.Snapshot(), time.Now()); err != nil {
			errs = append(errs, fmt.Errorf("persist metrics: %w", err))
		}
	}

	i.cfg.Logger.Info("run completed", map[string]any{
		"files":    len(paths),
		"reports":  len(result.Reports),
		"duration": result.Duration.String(),
	})

	return result, errors.Join(errs...)
}
