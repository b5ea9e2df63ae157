package types //nolint:revive // types is a valid package name

import "testing"

func TestChunkType_Valid(t *testing.T) {
	tests := []struct {
		code ChunkType
		want bool
	}{
		{"IHDR", true},
		{"foOB", true},
		{"zzzz", true},
		{"IHD", false},
		{"IHDRX", false},
		{"IH1R", false},
		{"IH R", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestChunkType_Known(t *testing.T) {
	for _, ct := range KnownChunkTypes() {
		if !ct.Known() {
			t.Errorf("%s should be known", ct)
		}
	}
	if len(KnownChunkTypes()) != 18 {
		t.Errorf("expected 18 known chunk types, got %d", len(KnownChunkTypes()))
	}
	for _, ct := range []ChunkType{"foOB", "eXIf", "ukwn", "IDAX"} {
		if ct.Known() {
			t.Errorf("%s should not be known", ct)
		}
	}
}

func TestKnownChunkTypes_ReturnsCopy(t *testing.T) {
	a := KnownChunkTypes()
	a[0] = "zzzz"
	if KnownChunkTypes()[0] != ChunkIHDR {
		t.Error("KnownChunkTypes must not expose the internal slice")
	}
}

func TestChunkType_PropertyBits(t *testing.T) {
	tests := []struct {
		code                                     ChunkType
		ancillary, private, reserved, safeToCopy bool
	}{
		{ChunkIHDR, false, false, false, false},
		{ChunkTEXT, true, false, false, true},
		{ChunkBKGD, true, false, false, false},
		{"foOB", true, true, false, false},
		{"prvt", true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Ancillary(); got != tt.ancillary {
				t.Errorf("Ancillary() = %v, want %v", got, tt.ancillary)
			}
			if got := tt.code.Private(); got != tt.private {
				t.Errorf("Private() = %v, want %v", got, tt.private)
			}
			if got := tt.code.Reserved(); got != tt.reserved {
				t.Errorf("Reserved() = %v, want %v", got, tt.reserved)
			}
			if got := tt.code.SafeToCopy(); got != tt.safeToCopy {
				t.Errorf("SafeToCopy() = %v, want %v", got, tt.safeToCopy)
			}
		})
	}
}

func TestParseChunkType(t *testing.T) {
	ct, err := ParseChunkType([]byte("IDAT"))
	if err != nil {
		t.Fatalf("ParseChunkType failed: %v", err)
	}
	if ct != ChunkIDAT {
		t.Errorf("got %q, want IDAT", ct)
	}

	if _, err := ParseChunkType([]byte{0x00, 'D', 'A', 'T'}); err == nil {
		t.Error("expected error for non-letter byte")
	}
}

func TestNewPassMeta(t *testing.T) {
	a := NewPassMeta("a.png")
	b := NewPassMeta("a.png")
	if a.PassID == "" || a.PassID == b.PassID {
		t.Errorf("pass IDs must be unique and non-empty: %q %q", a.PassID, b.PassID)
	}
	if a.Source != "a.png" {
		t.Errorf("Source = %q, want a.png", a.Source)
	}
	if a.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
}
