package validator

import (
	"iter"

	"github.com/justapithecus/pngdoctor/types"
)

// Validate runs a fresh pass over seq and returns its verdict.
// Iteration stops early once a fail-fast pass has stopped.
// A contract error aborts the pass and is returned with a zero Verdict.
func Validate(mode Mode, seq iter.Seq[types.ChunkRecord], opts ...Option) (Verdict, error) {
	if seq == nil {
		return Verdict{}, ErrNilSequence
	}

	p := NewPass(mode, opts...)
	var err error
	for rec := range seq {
		if err = p.Observe(rec); err != nil {
			break
		}
		if p.Stopped() {
			break
		}
	}
	if err != nil {
		return Verdict{}, err
	}
	return p.Finish(), nil
}

// ValidateRecords validates an in-memory record list.
// A nil slice is rejected with ErrNilSequence; an empty non-nil slice is an
// empty stream.
func ValidateRecords(mode Mode, recs []types.ChunkRecord, opts ...Option) (Verdict, error) {
	if recs == nil {
		return Verdict{}, ErrNilSequence
	}
	return Validate(mode, func(yield func(types.ChunkRecord) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}, opts...)
}
