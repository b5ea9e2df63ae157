// Package testutil builds chunk record fixtures for tests.
package testutil

import (
	"github.com/justapithecus/pngdoctor/rules"
	"github.com/justapithecus/pngdoctor/types"
)

// Records builds records from type codes, numbering ordinals from zero.
// lengths[i] sets the data length of record i. Records past the end of
// lengths get the largest length their rule allows: the exact or maximum
// size for bounded types, zero for unbounded and unknown types.
func Records(codes []types.ChunkType, lengths ...int64) []types.ChunkRecord {
	out := make([]types.ChunkRecord, len(codes))
	for i, c := range codes {
		n := RuleLength(c)
		if i < len(lengths) {
			n = lengths[i]
		}
		out[i] = types.ChunkRecord{Type: c, Length: n, Ordinal: i, Offset: -1}
	}
	return out
}

// RuleLength returns the largest data length the rule table accepts for t,
// zero when the size is unbounded or t has no rule.
func RuleLength(t types.ChunkType) int64 {
	r, ok := rules.RuleFor(t)
	if !ok || r.Size.Kind == rules.SizeUnbounded {
		return 0
	}
	return r.Size.Bytes
}
