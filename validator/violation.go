package validator

import (
	"fmt"

	"github.com/justapithecus/pngdoctor/rules"
	"github.com/justapithecus/pngdoctor/types"
)

// Category classifies a violation.
type Category string

const (
	// MissingHeader: the stream does not begin with IHDR.
	MissingHeader Category = "missing_header"
	// MissingTerminator: the stream does not end with IEND.
	MissingTerminator Category = "missing_terminator"
	// EmptyStream: the stream has no chunks at all.
	EmptyStream Category = "empty_stream"
	// DuplicateChunk: a single-only chunk type occurs more than once.
	DuplicateChunk Category = "duplicate_chunk"
	// MisplacedChunk: a first-only or last-only chunk is not where required.
	MisplacedChunk Category = "misplaced_chunk"
	// OrderViolation: a before/after relative ordering constraint is broken.
	OrderViolation Category = "order_violation"
	// NonConsecutiveChunk: IDAT occurrences are not contiguous.
	NonConsecutiveChunk Category = "non_consecutive_chunk"
	// OversizedChunk: data length exceeds its Max or mismatches its Exact size.
	OversizedChunk Category = "oversized_chunk"
	// UnsupportedCriticalChunk: an unrecognized chunk type marked critical.
	UnsupportedCriticalChunk Category = "unsupported_critical_chunk"
)

// Categories returns every category in reporting order.
func Categories() []Category {
	return []Category{
		MissingHeader, MissingTerminator, EmptyStream,
		DuplicateChunk, MisplacedChunk, OrderViolation,
		NonConsecutiveChunk, OversizedChunk, UnsupportedCriticalChunk,
	}
}

// Violation is one detected rule breach. It is immutable once reported.
type Violation struct {
	Category Category `json:"category" yaml:"category"`
	// Record is the offending chunk. Nil only for EmptyStream.
	Record *types.ChunkRecord `json:"record,omitempty" yaml:"record,omitempty"`
	// Rule names the broken rule, e.g. "before IDAT" or "exactly 13 bytes".
	Rule        string            `json:"rule" yaml:"rule"`
	Criticality rules.Criticality `json:"criticality" yaml:"criticality"`
	Message     string            `json:"message" yaml:"message"`
}

// ChunkType returns the offending chunk's type code, empty without a record.
func (v Violation) ChunkType() types.ChunkType {
	if v.Record == nil {
		return ""
	}
	return v.Record.Type
}

// Ordinal returns the offending chunk's position, -1 without a record.
func (v Violation) Ordinal() int {
	if v.Record == nil {
		return -1
	}
	return v.Record.Ordinal
}

// Blocking reports whether the violation means pixel data must not be
// decoded. Stream boundary problems, unsupported critical chunks, and
// any breach on a critical chunk are blocking; the rest only affect
// ancillary metadata.
func (v Violation) Blocking() bool {
	switch v.Category {
	case MissingHeader, MissingTerminator, EmptyStream, UnsupportedCriticalChunk:
		return true
	}
	return v.Criticality == rules.Critical
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Category, v.Message)
}

func newViolation(cat Category, rec types.ChunkRecord, rule, msg string) Violation {
	r := rec
	return Violation{
		Category:    cat,
		Record:      &r,
		Rule:        rule,
		Criticality: criticalityOf(rec.Type),
		Message:     msg,
	}
}

func criticalityOf(t types.ChunkType) rules.Criticality {
	if rules.IsCritical(t) {
		return rules.Critical
	}
	return rules.Ancillary
}

// Outcome is the top-level result of a pass.
type Outcome string

const (
	// Accept: the stream has no violations.
	Accept Outcome = "accept"
	// Reject: the stream has at least one violation.
	Reject Outcome = "reject"
)

// Verdict is the result of one validation pass.
// Violations are in detection order.
type Verdict struct {
	Outcome    Outcome     `json:"outcome" yaml:"outcome"`
	Violations []Violation `json:"violations" yaml:"violations"`
	// Chunks is the number of records observed.
	Chunks int `json:"chunks" yaml:"chunks"`
	// Stopped is true when fail-fast mode ended the pass early.
	Stopped bool `json:"stopped,omitempty" yaml:"stopped,omitempty"`
}

// Accepted reports whether the stream had no violations.
func (v Verdict) Accepted() bool {
	return len(v.Violations) == 0
}

// Blocking reports whether any violation is blocking.
func (v Verdict) Blocking() bool {
	for _, vi := range v.Violations {
		if vi.Blocking() {
			return true
		}
	}
	return false
}

// CountByCategory tallies violations per category.
func (v Verdict) CountByCategory() map[Category]int {
	out := make(map[Category]int)
	for _, vi := range v.Violations {
		out[vi.Category]++
	}
	return out
}
