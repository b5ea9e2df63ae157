package framer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/justapithecus/pngdoctor/types"
)

// colorType is the IHDR color type field.
type colorType uint8

const (
	colorGrayscale      colorType = 0
	colorRGB            colorType = 2
	colorIndexed        colorType = 3
	colorGrayscaleAlpha colorType = 4
	colorRGBAlpha       colorType = 6
)

func (c colorType) String() string {
	switch c {
	case colorGrayscale:
		return "grayscale"
	case colorRGB:
		return "rgb"
	case colorIndexed:
		return "indexed"
	case colorGrayscaleAlpha:
		return "grayscale_alpha"
	case colorRGBAlpha:
		return "rgb_alpha"
	default:
		return fmt.Sprintf("color_type(%d)", uint8(c))
	}
}

// bitDepths lists the bit depths allowed per color type.
var bitDepths = map[colorType][]uint8{
	colorGrayscale:      {1, 2, 4, 8, 16},
	colorRGB:            {8, 16},
	colorIndexed:        {1, 2, 4, 8},
	colorGrayscaleAlpha: {8, 16},
	colorRGBAlpha:       {8, 16},
}

// imageHeader is a parsed IHDR chunk.
type imageHeader struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	Color       colorType
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

const (
	ihdrLength       = 13
	maxPaletteLength = 3 * 256
	// maxKeywordLength bounds tEXt keywords (1-79 bytes).
	maxKeywordLength = 79
)

// syntaxChecker validates chunk data fields as they stream past.
//
// It checks what the rule table cannot see from lengths alone: IHDR field
// values, PLTE shape against the header, an indexed image's palette, and
// tEXt keywords. Data lengths that break the rule table are left to the
// validator, so a wrong-sized IHDR is a size violation, not a syntax error.
type syntaxChecker struct {
	header  *imageHeader
	palette bool
	idat    bool

	ct     types.ChunkType
	length int64
	data   []byte
	text   textState
}

// textState tracks a tEXt chunk across reads.
type textState struct {
	keyword []byte
	nulls   int
}

func (s *syntaxChecker) begin(ct types.ChunkType, length int64) {
	s.ct = ct
	s.length = length
	s.data = s.data[:0]
	s.text = textState{}
}

func (s *syntaxChecker) write(p []byte) {
	switch s.ct {
	case types.ChunkIHDR, types.ChunkPLTE:
		if s.length <= maxPaletteLength {
			s.data = append(s.data, p...)
		}
	case types.ChunkTEXT:
		s.text.write(p)
	}
}

func (t *textState) write(p []byte) {
	if t.nulls == 0 {
		i := bytes.IndexByte(p, 0)
		if i < 0 {
			// Keep one byte past the limit so overlong keywords are caught.
			if room := maxKeywordLength + 1 - len(t.keyword); room > 0 {
				t.keyword = append(t.keyword, p[:min(room, len(p))]...)
			}
			return
		}
		if room := maxKeywordLength + 1 - len(t.keyword); room > 0 {
			t.keyword = append(t.keyword, p[:min(room, i)]...)
		}
		t.nulls = 1
		p = p[i+1:]
	}
	t.nulls += bytes.Count(p, []byte{0})
}

// end checks the completed chunk. The returned message is empty when the
// chunk is well formed.
func (s *syntaxChecker) end() string {
	switch s.ct {
	case types.ChunkIHDR:
		if s.length != ihdrLength {
			return ""
		}
		h, msg := parseHeader(s.data)
		if msg != "" {
			return msg
		}
		s.header = &h
	case types.ChunkPLTE:
		s.palette = true
		if s.length > maxPaletteLength {
			return ""
		}
		return s.checkPalette()
	case types.ChunkIDAT:
		if s.idat {
			return ""
		}
		s.idat = true
		if s.header != nil && s.header.Color == colorIndexed && !s.palette {
			return "indexed color type but PLTE chunk not found before IDAT"
		}
	case types.ChunkTEXT:
		return s.text.check()
	}
	return ""
}

func parseHeader(data []byte) (imageHeader, string) {
	h := imageHeader{
		Width:       binary.BigEndian.Uint32(data[0:4]),
		Height:      binary.BigEndian.Uint32(data[4:8]),
		BitDepth:    data[8],
		Color:       colorType(data[9]),
		Compression: data[10],
		Filter:      data[11],
		Interlace:   data[12],
	}
	switch {
	case h.Width == 0 || h.Height == 0:
		return h, fmt.Sprintf("IHDR width or height is too small: %dx%d", h.Width, h.Height)
	case h.Width > MaxChunkLength || h.Height > MaxChunkLength:
		return h, fmt.Sprintf("IHDR width or height is too large: %dx%d", h.Width, h.Height)
	}
	switch h.BitDepth {
	case 1, 2, 4, 8, 16:
	default:
		return h, fmt.Sprintf("IHDR bit depth %d is not supported", h.BitDepth)
	}
	depths, ok := bitDepths[h.Color]
	if !ok {
		return h, fmt.Sprintf("invalid color type %d for IHDR chunk", uint8(h.Color))
	}
	if !slices.Contains(depths, h.BitDepth) {
		return h, fmt.Sprintf("IHDR bit depth %d not supported with color type %d:%s",
			h.BitDepth, uint8(h.Color), h.Color)
	}
	switch {
	case h.Compression != 0:
		return h, fmt.Sprintf("invalid compression method %d for IHDR chunk", h.Compression)
	case h.Filter != 0:
		return h, fmt.Sprintf("invalid filter method %d for IHDR chunk", h.Filter)
	case h.Interlace > 1:
		return h, fmt.Sprintf("invalid interlace method %d for IHDR chunk", h.Interlace)
	}
	return h, ""
}

func (s *syntaxChecker) checkPalette() string {
	n := len(s.data)
	switch {
	case n < 3:
		return "PLTE palette data is too short"
	case n%3 != 0:
		return fmt.Sprintf("PLTE palette length %d is not a multiple of 3", n)
	}
	if s.header == nil {
		return ""
	}
	switch s.header.Color {
	case colorGrayscale, colorGrayscaleAlpha:
		return fmt.Sprintf("PLTE chunk not permitted with color type %s", s.header.Color)
	case colorIndexed:
		if limit := 3 << s.header.BitDepth; n > limit {
			return fmt.Sprintf("PLTE length %d larger than maximum %d for bit depth %d",
				n, limit, s.header.BitDepth)
		}
	}
	return ""
}

func (t *textState) check() string {
	switch {
	case t.nulls == 0:
		return "no null separator found in tEXt data"
	case t.nulls > 1:
		return "too many null bytes found in tEXt data"
	case len(t.keyword) == 0 || len(t.keyword) > maxKeywordLength:
		return fmt.Sprintf("invalid length for tEXt keyword: %d", len(t.keyword))
	case t.keyword[0] == ' ' || t.keyword[len(t.keyword)-1] == ' ':
		return "forbidden leading or trailing space in tEXt keyword"
	case bytes.Contains(t.keyword, []byte("  ")):
		return "forbidden consecutive spaces in tEXt keyword"
	}
	for _, b := range t.keyword {
		if b < 32 || (b > 126 && b < 161) {
			return fmt.Sprintf("forbidden byte 0x%02x in tEXt keyword", b)
		}
	}
	return ""
}
