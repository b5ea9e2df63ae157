package policy

import (
	"fmt"

	"github.com/justapithecus/pngdoctor/validator"
)

// StrictPolicy halts on any violation.
type StrictPolicy struct {
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy.
func NewStrictPolicy() *StrictPolicy {
	return &StrictPolicy{stats: newStatsRecorder()}
}

// Name implements Policy.
func (p *StrictPolicy) Name() string { return "strict" }

// Decide implements Policy.
func (p *StrictPolicy) Decide(v validator.Verdict) Decision {
	d := Decision{Action: Proceed}
	if !v.Accepted() {
		d = Decision{
			Action: Halt,
			Reason: fmt.Sprintf("%d violation(s), first: %s", len(v.Violations), v.Violations[0].Message),
		}
	}
	p.stats.record(v, d)
	return d
}

// Stats implements Policy.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
