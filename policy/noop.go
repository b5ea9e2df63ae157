package policy

import (
	"github.com/justapithecus/pngdoctor/validator"
)

// NoopPolicy always proceeds. Used by diagnostic surfaces that only
// report violations and never decode.
//
// Stats still count verdicts and violations so that reports stay
// comparable with the other policies.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Name implements Policy.
func (p *NoopPolicy) Name() string { return "noop" }

// Decide implements Policy.
func (p *NoopPolicy) Decide(v validator.Verdict) Decision {
	d := Decision{Action: Proceed}
	p.stats.record(v, d)
	return d
}

// Stats implements Policy.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
