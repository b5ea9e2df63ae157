package policy

import (
	"fmt"

	"github.com/justapithecus/pngdoctor/validator"
)

// LenientPolicy halts only on blocking violations: stream boundary
// problems, unsupported critical chunks, and any breach on a critical
// chunk. Ancillary-only violations yield ProceedDegraded with the
// offending chunk types listed for the decoder to skip.
//
// A fail-fast verdict that stopped on an ancillary violation halts: the
// rest of the stream was never checked, so it cannot be cleared for decode.
type LenientPolicy struct {
	stats *statsRecorder
}

// NewLenientPolicy creates a new lenient policy.
func NewLenientPolicy() *LenientPolicy {
	return &LenientPolicy{stats: newStatsRecorder()}
}

const stoppedReason = "fail-fast pass stopped before the stream was fully validated"

// Name implements Policy.
func (p *LenientPolicy) Name() string { return "lenient" }

// Decide implements Policy.
func (p *LenientPolicy) Decide(v validator.Verdict) Decision {
	var d Decision
	switch blocking, ok := firstBlocking(v); {
	case v.Accepted():
		d = Decision{Action: Proceed}
	case ok:
		d = Decision{Action: Halt, Reason: blocking.Message}
	case v.Stopped:
		d = Decision{Action: Halt, Reason: stoppedReason}
	default:
		d = Decision{
			Action: ProceedDegraded,
			Reason: fmt.Sprintf("%d ancillary violation(s)", len(v.Violations)),
			Ignore: ignoredTypes(v),
		}
	}
	p.stats.record(v, d)
	return d
}

// Stats implements Policy.
func (p *LenientPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*LenientPolicy)(nil)
