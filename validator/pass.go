// Package validator implements the single-pass PNG chunk stream validator.
//
// A Pass consumes chunk records in arrival order, checks each against the
// rule table, and collects violations. Malformed structure is reported as
// data in the Verdict. Caller mistakes (negative lengths, out-of-sequence
// ordinals, use after Finish) are returned as errors.
//
// A Pass is not safe for concurrent use. Independent passes share only the
// read-only rule table and may run in parallel.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/pngdoctor/rules"
	"github.com/justapithecus/pngdoctor/types"
)

// Contract errors.
var (
	ErrInvalidRecord = errors.New("invalid chunk record")
	ErrNilSequence   = errors.New("nil chunk sequence")
	ErrPassFinished  = errors.New("validation pass already finished")
)

// Mode selects whether a pass stops at the first violation.
type Mode int

const (
	// CollectAll reports every violation in the stream.
	CollectAll Mode = iota
	// FailFast stops at the first violation.
	FailFast
)

func (m Mode) String() string {
	switch m {
	case CollectAll:
		return "collect-all"
	case FailFast:
		return "fail-fast"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "collect-all" or "fail-fast".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collect-all", "collect_all", "collectall", "":
		return CollectAll, nil
	case "fail-fast", "fail_fast", "failfast":
		return FailFast, nil
	default:
		return CollectAll, fmt.Errorf("unknown validation mode %q", s)
	}
}

// Option configures a Pass.
type Option func(*Pass)

// OnViolation registers a callback invoked synchronously for each
// reported violation, in detection order.
func OnViolation(fn func(Violation)) Option {
	return func(p *Pass) { p.onViolation = fn }
}

// parked is a record waiting for its AfterChunk target to show up.
type parked struct {
	rec        types.ChunkRecord
	constraint rules.Constraint
}

// Pass is the state of one validation pass.
type Pass struct {
	mode        Mode
	onViolation func(Violation)

	count     int
	seen      map[types.ChunkType]int
	last      types.ChunkRecord
	inIDATRun bool
	firstIEND *types.ChunkRecord
	// waiting holds records keyed by the chunk type they must follow.
	waiting map[types.ChunkType][]parked

	violations []Violation
	stopped    bool
	finished   bool
	verdict    Verdict
}

// NewPass creates a fresh pass.
func NewPass(mode Mode, opts ...Option) *Pass {
	p := &Pass{
		mode:    mode,
		seen:    make(map[types.ChunkType]int),
		waiting: make(map[types.ChunkType][]parked),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the pass mode.
func (p *Pass) Mode() Mode { return p.mode }

// Stopped reports whether fail-fast mode has ended the pass.
func (p *Pass) Stopped() bool { return p.stopped }

// Count returns the number of records observed.
func (p *Pass) Count() int { return p.count }

// Violations returns a copy of the violations reported so far.
func (p *Pass) Violations() []Violation {
	out := make([]Violation, len(p.violations))
	copy(out, p.violations)
	return out
}

// Observe checks one record. Records must arrive with consecutive
// ordinals starting at zero. Once a fail-fast pass has stopped, Observe
// is a no-op that returns nil.
func (p *Pass) Observe(rec types.ChunkRecord) error {
	if p.finished {
		return ErrPassFinished
	}
	if p.stopped {
		return nil
	}
	if err := p.checkContract(rec); err != nil {
		return err
	}

	if rec.Ordinal == 0 && rec.Type != types.ChunkIHDR {
		p.report(newViolation(MissingHeader, rec, "must be first",
			fmt.Sprintf("stream begins with %s at position 0, expected IHDR", rec.Type)))
	}

	rule, known := rules.RuleFor(rec.Type)
	if !known {
		if !rec.Type.Ancillary() {
			p.report(newViolation(UnsupportedCriticalChunk, rec, "recognized critical chunk",
				fmt.Sprintf("chunk %s at position %d is an unrecognized critical chunk", rec.Type, rec.Ordinal)))
		}
	} else {
		p.checkRule(rec, rule)
	}

	p.advance(rec)
	return nil
}

func (p *Pass) checkContract(rec types.ChunkRecord) error {
	switch {
	case rec.Length < 0:
		return fmt.Errorf("%w: %s at ordinal %d has negative length %d",
			ErrInvalidRecord, rec.Type, rec.Ordinal, rec.Length)
	case rec.Ordinal != p.count:
		return fmt.Errorf("%w: ordinal %d out of sequence, expected %d",
			ErrInvalidRecord, rec.Ordinal, p.count)
	case !rec.Type.Valid():
		return fmt.Errorf("%w: type code %q at ordinal %d is not four ASCII letters",
			ErrInvalidRecord, string(rec.Type), rec.Ordinal)
	}
	return nil
}

func (p *Pass) checkRule(rec types.ChunkRecord, rule rules.ChunkRule) {
	if rule.Multiplicity == rules.Single && p.seen[rec.Type] > 0 {
		p.report(newViolation(DuplicateChunk, rec, "single",
			fmt.Sprintf("chunk %s at position %d duplicates an earlier %s", rec.Type, rec.Ordinal, rec.Type)))
	}

	for _, c := range rule.Ordering {
		switch c.Kind {
		case rules.MustBeFirst:
			if rec.Ordinal != 0 {
				p.report(newViolation(MisplacedChunk, rec, c.String(),
					fmt.Sprintf("chunk %s at position %d must be the first chunk", rec.Type, rec.Ordinal)))
			}
		case rules.BeforeChunk:
			if p.seen[c.Chunk] > 0 {
				p.report(newViolation(OrderViolation, rec, c.String(),
					fmt.Sprintf("chunk %s at position %d must appear before %s", rec.Type, rec.Ordinal, c.Chunk)))
			}
		case rules.AfterChunk:
			if p.seen[c.Chunk] == 0 {
				p.waiting[c.Chunk] = append(p.waiting[c.Chunk], parked{rec: rec, constraint: c})
			}
		case rules.ConsecutiveIfRepeated:
			if p.seen[rec.Type] > 0 && !p.inIDATRun {
				p.report(newViolation(NonConsecutiveChunk, rec, c.String(),
					fmt.Sprintf("chunk %s at position %d is not consecutive with prior %s chunks", rec.Type, rec.Ordinal, rec.Type)))
			}
		case rules.MustBeLast:
			// checked by Finish
		}
	}

	if !rule.Size.Allows(rec.Length) {
		p.report(newViolation(OversizedChunk, rec, rule.Size.String(),
			fmt.Sprintf("chunk %s at position %d has %d data bytes, expected %s", rec.Type, rec.Ordinal, rec.Length, rule.Size)))
	}
}

// advance folds rec into the pass state and resolves records that were
// waiting for rec's type to appear.
func (p *Pass) advance(rec types.ChunkRecord) {
	for _, w := range p.waiting[rec.Type] {
		p.report(newViolation(OrderViolation, w.rec, w.constraint.String(),
			fmt.Sprintf("chunk %s at position %d must appear after %s (found at position %d)",
				w.rec.Type, w.rec.Ordinal, rec.Type, rec.Ordinal)))
	}
	delete(p.waiting, rec.Type)

	p.seen[rec.Type]++
	p.inIDATRun = rec.Type == types.ChunkIDAT
	if rec.Type == types.ChunkIEND && p.firstIEND == nil {
		r := rec
		p.firstIEND = &r
	}
	p.last = rec
	p.count++
}

func (p *Pass) report(v Violation) {
	if p.stopped {
		return
	}
	p.violations = append(p.violations, v)
	if p.onViolation != nil {
		p.onViolation(v)
	}
	if p.mode == FailFast {
		p.stopped = true
	}
}

// Finish runs end-of-stream checks and returns the verdict.
// Calling Finish again returns the same verdict.
func (p *Pass) Finish() Verdict {
	if p.finished {
		return p.verdict
	}
	p.finished = true

	switch {
	case p.count == 0:
		p.report(Violation{
			Category:    EmptyStream,
			Rule:        "must be first",
			Criticality: rules.Critical,
			Message:     "stream contains no chunks",
		})
	case p.firstIEND != nil && p.last.Type != types.ChunkIEND:
		p.report(newViolation(MisplacedChunk, *p.firstIEND, "must be last",
			fmt.Sprintf("chunk IEND at position %d must be the last chunk, stream ends with %s at position %d",
				p.firstIEND.Ordinal, p.last.Type, p.last.Ordinal)))
	case p.firstIEND == nil:
		p.report(newViolation(MissingTerminator, p.last, "must be last",
			fmt.Sprintf("stream ends with %s at position %d, expected IEND", p.last.Type, p.last.Ordinal)))
	}

	// AfterChunk targets that never appeared are vacuously satisfied.
	clear(p.waiting)

	p.verdict = Verdict{
		Outcome:    Accept,
		Violations: p.Violations(),
		Chunks:     p.count,
		Stopped:    p.stopped,
	}
	if len(p.verdict.Violations) > 0 {
		p.verdict.Outcome = Reject
	}
	return p.verdict
}
