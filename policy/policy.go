// Package policy turns validation verdicts into decode decisions.
//
// The validator classifies a stream but never decides what a consumer
// should do with it. A Policy makes that call: proceed, proceed while
// ignoring broken ancillary metadata, or halt before any pixel work.
package policy

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/justapithecus/pngdoctor/types"
	"github.com/justapithecus/pngdoctor/validator"
)

// Action is the outcome of a policy decision.
type Action string

const (
	// Proceed means the stream is safe to decode.
	Proceed Action = "proceed"
	// ProceedDegraded means decode may go ahead while ignoring the
	// ancillary chunks named in the decision.
	ProceedDegraded Action = "proceed_degraded"
	// Halt means pixel data must not be decoded.
	Halt Action = "halt"
)

// Decision is a policy's verdict on one validation pass.
type Decision struct {
	Action Action `json:"action" yaml:"action"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	// Ignore lists ancillary chunk types to skip under ProceedDegraded.
	Ignore []types.ChunkType `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// Halted reports whether the decision stops decoding.
func (d Decision) Halted() bool { return d.Action == Halt }

// Policy decides what to do with a verdict.
// Implementations must be safe for concurrent use.
type Policy interface {
	// Name returns the policy name used in config and reports.
	Name() string

	// Decide maps a verdict to a decision.
	Decide(v validator.Verdict) Decision

	// Stats returns a consistent snapshot of decision counters.
	Stats() Stats
}

// Stats represents policy decision counters.
type Stats struct {
	// TotalVerdicts is the number of verdicts decided.
	TotalVerdicts int64
	// Proceeded is the number of Proceed decisions.
	Proceeded int64
	// Degraded is the number of ProceedDegraded decisions.
	Degraded int64
	// Halted is the number of Halt decisions.
	Halted int64
	// ViolationsByCategory counts violations seen across all verdicts.
	ViolationsByCategory map[validator.Category]int64
}

// Names returns the registered policy names.
func Names() []string {
	return []string{"strict", "lenient", "noop"}
}

// New creates a policy by name.
func New(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "strict":
		return NewStrictPolicy(), nil
	case "lenient":
		return NewLenientPolicy(), nil
	case "noop":
		return NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

// statsRecorder is an internal helper for thread-safe stats management.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			ViolationsByCategory: make(map[validator.Category]int64),
		},
	}
}

func (r *statsRecorder) record(v validator.Verdict, d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalVerdicts++
	switch d.Action {
	case Proceed:
		r.stats.Proceeded++
	case ProceedDegraded:
		r.stats.Degraded++
	case Halt:
		r.stats.Halted++
	}
	for _, vi := range v.Violations {
		r.stats.ViolationsByCategory[vi.Category]++
	}
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.ViolationsByCategory = make(map[validator.Category]int64, len(r.stats.ViolationsByCategory))
	for k, v := range r.stats.ViolationsByCategory {
		s.ViolationsByCategory[k] = v
	}
	return s
}

// firstBlocking returns the first blocking violation, if any.
func firstBlocking(v validator.Verdict) (validator.Violation, bool) {
	for _, vi := range v.Violations {
		if vi.Blocking() {
			return vi, true
		}
	}
	return validator.Violation{}, false
}

// ignoredTypes lists the distinct chunk types named by violations, sorted.
func ignoredTypes(v validator.Verdict) []types.ChunkType {
	var out []types.ChunkType
	for _, vi := range v.Violations {
		if ct := vi.ChunkType(); ct != "" && !slices.Contains(out, ct) {
			out = append(out, ct)
		}
	}
	slices.Sort(out)
	return out
}
