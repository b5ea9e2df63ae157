// Package types defines core domain types for pngdoctor.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// ChunkTypeLen is the length of a PNG chunk type code in bytes.
const ChunkTypeLen = 4

// propertyBit is bit 5 of each type code byte (lowercase letter bit).
const propertyBit = 0x20

// ChunkType is a 4-byte PNG chunk type code.
// Recognized codes have named constants; any other valid code is the
// "unknown" variant and keeps its raw bytes.
type ChunkType string

// Critical chunk types (PNG 1.2 section 4.1).
const (
	ChunkIHDR ChunkType = "IHDR"
	ChunkPLTE ChunkType = "PLTE"
	ChunkIDAT ChunkType = "IDAT"
	ChunkIEND ChunkType = "IEND"
)

// Ancillary chunk types (PNG 1.2 section 4.2).
const (
	ChunkCHRM ChunkType = "cHRM"
	ChunkGAMA ChunkType = "gAMA"
	ChunkICCP ChunkType = "iCCP"
	ChunkSBIT ChunkType = "sBIT"
	ChunkSRGB ChunkType = "sRGB"
	ChunkBKGD ChunkType = "bKGD"
	ChunkHIST ChunkType = "hIST"
	ChunkTRNS ChunkType = "tRNS"
	ChunkPHYS ChunkType = "pHYs"
	ChunkSPLT ChunkType = "sPLT"
	ChunkTIME ChunkType = "tIME"
	ChunkITXT ChunkType = "iTXt"
	ChunkTEXT ChunkType = "tEXt"
	ChunkZTXT ChunkType = "zTXt"
)

// knownChunkTypes lists every recognized chunk type in table order.
var knownChunkTypes = []ChunkType{
	ChunkIHDR, ChunkPLTE, ChunkIDAT, ChunkIEND,
	ChunkCHRM, ChunkGAMA, ChunkICCP, ChunkSBIT, ChunkSRGB,
	ChunkBKGD, ChunkHIST, ChunkTRNS,
	ChunkPHYS, ChunkSPLT,
	ChunkTIME, ChunkITXT, ChunkTEXT, ChunkZTXT,
}

var knownSet = func() map[ChunkType]struct{} {
	m := make(map[ChunkType]struct{}, len(knownChunkTypes))
	for _, t := range knownChunkTypes {
		m[t] = struct{}{}
	}
	return m
}()

// KnownChunkTypes returns the recognized chunk types in canonical order.
func KnownChunkTypes() []ChunkType {
	out := make([]ChunkType, len(knownChunkTypes))
	copy(out, knownChunkTypes)
	return out
}

// ParseChunkType converts raw type bytes to a ChunkType.
// Returns an error unless b is exactly four ASCII letters.
func ParseChunkType(b []byte) (ChunkType, error) {
	t := ChunkType(b)
	if !t.Valid() {
		return "", fmt.Errorf("invalid chunk type code %q", b)
	}
	return t, nil
}

// Valid reports whether t is exactly four ASCII letters.
func (t ChunkType) Valid() bool {
	if len(t) != ChunkTypeLen {
		return false
	}
	for i := 0; i < ChunkTypeLen; i++ {
		c := t[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// Known reports whether t is one of the recognized PNG 1.2 chunk types.
func (t ChunkType) Known() bool {
	_, ok := knownSet[t]
	return ok
}

// Ancillary reports whether the ancillary bit (first byte) is set.
// A critical chunk has an uppercase first letter.
func (t ChunkType) Ancillary() bool { return t.bit(0) }

// Private reports whether the private bit (second byte) is set.
func (t ChunkType) Private() bool { return t.bit(1) }

// Reserved reports whether the reserved bit (third byte) is set.
// Conforming PNG 1.2 chunk types always leave it clear.
func (t ChunkType) Reserved() bool { return t.bit(2) }

// SafeToCopy reports whether the safe-to-copy bit (fourth byte) is set.
func (t ChunkType) SafeToCopy() bool { return t.bit(3) }

func (t ChunkType) bit(i int) bool {
	if len(t) != ChunkTypeLen {
		return false
	}
	return t[i]&propertyBit != 0
}

// String returns the type code.
func (t ChunkType) String() string { return string(t) }

// ChunkRecord is one observed chunk in a stream, as produced by a framer.
// It carries only what structural validation needs, never the chunk bytes.
type ChunkRecord struct {
	// Type is the chunk type code.
	Type ChunkType `json:"type" msgpack:"type"`
	// Length is the chunk data length in bytes.
	Length int64 `json:"length" msgpack:"length"`
	// Ordinal is the zero-based position of the chunk in the stream.
	Ordinal int `json:"ordinal" msgpack:"ordinal"`
	// Offset is the byte offset of the chunk in its container, or -1 if unknown.
	Offset int64 `json:"offset" msgpack:"offset"`
}

// String renders the record for log and error messages.
func (r ChunkRecord) String() string {
	return fmt.Sprintf("%s@%d(%d bytes)", r.Type, r.Ordinal, r.Length)
}
