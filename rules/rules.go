// Package rules holds the PNG 1.2 chunk rule table.
//
// The table is static data: criticality, multiplicity, ordering constraints,
// and data-size limits per recognized chunk type. It is built once at package
// initialization and never mutated, so it is safe to share across any number
// of concurrent validation passes.
package rules

import (
	"fmt"
	"strings"

	"github.com/justapithecus/pngdoctor/types"
)

// Criticality marks whether a decoder must understand a chunk.
type Criticality string

const (
	Critical  Criticality = "critical"
	Ancillary Criticality = "ancillary"
)

// Multiplicity marks whether a chunk type may occur more than once.
type Multiplicity string

const (
	Single   Multiplicity = "single"
	Multiple Multiplicity = "multiple"
)

// SizeKind classifies a size constraint.
type SizeKind string

const (
	SizeUnbounded SizeKind = "unbounded"
	SizeExact     SizeKind = "exact"
	SizeMax       SizeKind = "max"
)

// SizeConstraint bounds a chunk's data length in bytes.
type SizeConstraint struct {
	Kind  SizeKind `json:"kind" yaml:"kind"`
	Bytes int64    `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// Exact requires a data length of exactly n bytes.
func Exact(n int64) SizeConstraint { return SizeConstraint{Kind: SizeExact, Bytes: n} }

// Max requires a data length of at most n bytes.
func Max(n int64) SizeConstraint { return SizeConstraint{Kind: SizeMax, Bytes: n} }

// Unbounded places no limit on data length.
func Unbounded() SizeConstraint { return SizeConstraint{Kind: SizeUnbounded} }

// Allows reports whether a data length satisfies the constraint.
func (s SizeConstraint) Allows(length int64) bool {
	switch s.Kind {
	case SizeExact:
		return length == s.Bytes
	case SizeMax:
		return length <= s.Bytes
	default:
		return true
	}
}

func (s SizeConstraint) String() string {
	switch s.Kind {
	case SizeExact:
		return fmt.Sprintf("exactly %d bytes", s.Bytes)
	case SizeMax:
		return fmt.Sprintf("at most %d bytes", s.Bytes)
	default:
		return "unbounded"
	}
}

// ConstraintKind enumerates positional constraints.
type ConstraintKind string

const (
	MustBeFirst           ConstraintKind = "must_be_first"
	MustBeLast            ConstraintKind = "must_be_last"
	BeforeChunk           ConstraintKind = "before_chunk"
	AfterChunk            ConstraintKind = "after_chunk"
	ConsecutiveIfRepeated ConstraintKind = "consecutive_if_repeated"
)

// Constraint is one ordering constraint. Chunk is set only for
// BeforeChunk and AfterChunk.
type Constraint struct {
	Kind  ConstraintKind  `json:"kind" yaml:"kind"`
	Chunk types.ChunkType `json:"chunk,omitempty" yaml:"chunk,omitempty"`
}

// Before builds a BeforeChunk(t) constraint.
func Before(t types.ChunkType) Constraint { return Constraint{Kind: BeforeChunk, Chunk: t} }

// After builds an AfterChunk(t) constraint.
func After(t types.ChunkType) Constraint { return Constraint{Kind: AfterChunk, Chunk: t} }

func (c Constraint) String() string {
	switch c.Kind {
	case MustBeFirst:
		return "must be first"
	case MustBeLast:
		return "must be last"
	case BeforeChunk:
		return "before " + string(c.Chunk)
	case AfterChunk:
		return "after " + string(c.Chunk)
	case ConsecutiveIfRepeated:
		return "consecutive if repeated"
	default:
		return string(c.Kind)
	}
}

// ChunkRule is the static rule for one chunk type.
type ChunkRule struct {
	Type         types.ChunkType `json:"type" yaml:"type"`
	Criticality  Criticality     `json:"criticality" yaml:"criticality"`
	Multiplicity Multiplicity    `json:"multiplicity" yaml:"multiplicity"`
	Size         SizeConstraint  `json:"size" yaml:"size"`
	Ordering     []Constraint    `json:"ordering" yaml:"ordering"`
}

// Has reports whether the rule carries a constraint of the given kind.
func (r ChunkRule) Has(kind ConstraintKind) bool {
	for _, c := range r.Ordering {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// OrderingString renders the ordering constraints, "none" if empty.
func (r ChunkRule) OrderingString() string {
	if len(r.Ordering) == 0 {
		return "none"
	}
	parts := make([]string, len(r.Ordering))
	for i, c := range r.Ordering {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

func (r ChunkRule) clone() ChunkRule {
	out := r
	out.Ordering = make([]Constraint, len(r.Ordering))
	copy(out.Ordering, r.Ordering)
	return out
}

// table is the PNG 1.2 chunk rule table, in canonical order.
var table = []ChunkRule{
	{types.ChunkIHDR, Critical, Single, Exact(13), []Constraint{{Kind: MustBeFirst}}},
	{types.ChunkPLTE, Critical, Single, Max(768), []Constraint{Before(types.ChunkIDAT)}},
	{types.ChunkIDAT, Critical, Multiple, Unbounded(), []Constraint{{Kind: ConsecutiveIfRepeated}}},
	{types.ChunkIEND, Critical, Single, Exact(0), []Constraint{{Kind: MustBeLast}}},

	{types.ChunkCHRM, Ancillary, Single, Exact(32), []Constraint{Before(types.ChunkPLTE), Before(types.ChunkIDAT)}},
	{types.ChunkGAMA, Ancillary, Single, Exact(4), []Constraint{Before(types.ChunkPLTE), Before(types.ChunkIDAT)}},
	{types.ChunkICCP, Ancillary, Single, Unbounded(), []Constraint{Before(types.ChunkPLTE), Before(types.ChunkIDAT)}},
	{types.ChunkSBIT, Ancillary, Single, Max(4), []Constraint{Before(types.ChunkPLTE), Before(types.ChunkIDAT)}},
	{types.ChunkSRGB, Ancillary, Single, Exact(1), []Constraint{Before(types.ChunkPLTE), Before(types.ChunkIDAT)}},

	{types.ChunkBKGD, Ancillary, Single, Max(6), []Constraint{After(types.ChunkPLTE), Before(types.ChunkIDAT)}},
	{types.ChunkHIST, Ancillary, Single, Max(512), []Constraint{After(types.ChunkPLTE), Before(types.ChunkIDAT)}},
	{types.ChunkTRNS, Ancillary, Single, Max(256), []Constraint{After(types.ChunkPLTE), Before(types.ChunkIDAT)}},

	{types.ChunkPHYS, Ancillary, Single, Exact(9), []Constraint{Before(types.ChunkIDAT)}},
	{types.ChunkSPLT, Ancillary, Multiple, Unbounded(), []Constraint{Before(types.ChunkIDAT)}},

	{types.ChunkTIME, Ancillary, Single, Exact(7), nil},
	{types.ChunkITXT, Ancillary, Multiple, Unbounded(), nil},
	{types.ChunkTEXT, Ancillary, Multiple, Unbounded(), nil},
	{types.ChunkZTXT, Ancillary, Multiple, Unbounded(), nil},
}

var index = func() map[types.ChunkType]int {
	m := make(map[types.ChunkType]int, len(table))
	for i, r := range table {
		if _, dup := m[r.Type]; dup {
			panic("rules: duplicate entry for " + string(r.Type))
		}
		m[r.Type] = i
	}
	for _, t := range types.KnownChunkTypes() {
		if _, ok := m[t]; !ok {
			panic("rules: no entry for " + string(t))
		}
	}
	return m
}()

// RuleFor returns the rule for a chunk type.
// Returns false for unknown chunk types, which carry no structural rule.
func RuleFor(t types.ChunkType) (ChunkRule, bool) {
	i, ok := index[t]
	if !ok {
		return ChunkRule{}, false
	}
	return table[i].clone(), true
}

// All returns a copy of the whole table in canonical order.
func All() []ChunkRule {
	out := make([]ChunkRule, len(table))
	for i, r := range table {
		out[i] = r.clone()
	}
	return out
}

// IsCritical reports whether t is critical: by the table for recognized
// types, by the ancillary bit otherwise.
func IsCritical(t types.ChunkType) bool {
	if i, ok := index[t]; ok {
		return table[i].Criticality == Critical
	}
	return !t.Ancillary()
}
