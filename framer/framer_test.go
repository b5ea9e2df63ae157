package framer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/justapithecus/pngdoctor/types"
)

type testChunk struct {
	t    types.ChunkType
	data []byte
}

func buildPNG(t *testing.T, chunks ...testChunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, c := range chunks {
		if err := w.WriteChunk(c.t, c.data); err != nil {
			t.Fatalf("WriteChunk failed: %v", err)
		}
	}
	return buf.Bytes()
}

// header builds IHDR data with default compression, filter and interlace.
func header(width, height uint32, depth uint8, color colorType) []byte {
	data := make([]byte, ihdrLength)
	binary.BigEndian.PutUint32(data[0:4], width)
	binary.BigEndian.PutUint32(data[4:8], height)
	data[8] = depth
	data[9] = byte(color)
	return data
}

func minimalPNG(t *testing.T) []byte {
	return buildPNG(t,
		testChunk{types.ChunkIHDR, header(1, 1, 8, colorRGB)},
		testChunk{types.ChunkIDAT, bytes.Repeat([]byte{0xAB}, 10000)},
		testChunk{types.ChunkIEND, nil},
	)
}

func TestDecoder_ReadChunk(t *testing.T) {
	d := NewDecoder(bytes.NewReader(minimalPNG(t)))

	want := []types.ChunkRecord{
		{Type: types.ChunkIHDR, Length: 13, Ordinal: 0, Offset: 8},
		{Type: types.ChunkIDAT, Length: 10000, Ordinal: 1, Offset: 8 + 12 + 13},
		{Type: types.ChunkIEND, Length: 0, Ordinal: 2, Offset: 8 + 12 + 13 + 12 + 10000},
	}
	for i, w := range want {
		got, err := d.ReadChunk()
		if err != nil {
			t.Fatalf("chunk %d: ReadChunk failed: %v", i, err)
		}
		if got != w {
			t.Errorf("chunk %d = %+v, want %+v", i, got, w)
		}
	}

	if _, err := d.ReadChunk(); err != io.EOF {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
	if d.Err() != nil {
		t.Errorf("Err() = %v, want nil after clean end", d.Err())
	}
	if got, want := d.BytesRead(), int64(len(minimalPNG(t))); got != want {
		t.Errorf("BytesRead() = %d, want %d", got, want)
	}
}

func TestDecoder_Records(t *testing.T) {
	d := NewDecoder(bytes.NewReader(minimalPNG(t)))
	var got []types.ChunkType
	for rec := range d.Records() {
		got = append(got, rec.Type)
	}
	if len(got) != 3 || got[2] != types.ChunkIEND {
		t.Errorf("records = %v", got)
	}
	if d.Err() != nil {
		t.Errorf("Err() = %v", d.Err())
	}
}

func TestDecoder_Errors(t *testing.T) {
	good := minimalPNG(t)

	badCRC := func() []byte {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		_ = w.WriteChunk(types.ChunkIHDR, header(1, 1, 8, colorRGB))
		_ = w.WriteChunkCRC(types.ChunkIEND, nil, 0xDEADBEEF)
		return buf.Bytes()
	}()

	badType := append([]byte(Signature), 0, 0, 0, 0, 'I', '1', 'D', 'R', 0, 0, 0, 0)
	badLength := append([]byte(Signature), 0x80, 0, 0, 0, 'I', 'H', 'D', 'R')

	tests := []struct {
		name string
		data []byte
		opts []Option
		kind FrameErrorKind
	}{
		{"empty", nil, nil, FrameErrorSignature},
		{"short signature", []byte("\x89PN"), nil, FrameErrorSignature},
		{"wrong signature", append([]byte("GIF89a\x00\x00"), good[8:]...), nil, FrameErrorSignature},
		{"truncated head", good[:8+5], nil, FrameErrorPartial},
		{"truncated data", good[:8+12+13+8+100], nil, FrameErrorPartial},
		{"truncated crc", good[:len(good)-2], nil, FrameErrorPartial},
		{"bad crc", badCRC, nil, FrameErrorBadCRC},
		{"bad type code", badType, nil, FrameErrorBadTypeCode},
		{"bad length", badLength, nil, FrameErrorBadLength},
		{"too large", good, []Option{WithMaxFileSize(1024)}, FrameErrorTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(bytes.NewReader(tt.data), tt.opts...)
			var err error
			for err == nil {
				_, err = d.ReadChunk()
			}
			if err == io.EOF {
				t.Fatal("expected framing error, got clean EOF")
			}
			fe, ok := IsFrameError(err)
			if !ok {
				t.Fatalf("expected *FrameError, got %T: %v", err, err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s (%v)", fe.Kind, tt.kind, err)
			}
			if !errors.Is(d.Err(), err) {
				t.Errorf("Err() = %v, want %v", d.Err(), err)
			}
			// Sticky error.
			if _, again := d.ReadChunk(); again != err {
				t.Errorf("second ReadChunk = %v, want sticky %v", again, err)
			}
		})
	}
}

func TestDecoder_ExactlyAtSizeCap(t *testing.T) {
	data := minimalPNG(t)
	d := NewDecoder(bytes.NewReader(data), WithMaxFileSize(int64(len(data))))
	n := 0
	for range d.Records() {
		n++
	}
	if d.Err() != nil {
		t.Fatalf("Err() = %v, want nil for a file exactly at the cap", d.Err())
	}
	if n != 3 {
		t.Errorf("read %d records, want 3", n)
	}
}

func TestDecoder_UnknownChunkPassesThrough(t *testing.T) {
	data := buildPNG(t,
		testChunk{types.ChunkIHDR, header(1, 1, 8, colorRGB)},
		testChunk{"foOB", []byte("private")},
		testChunk{types.ChunkIEND, nil},
	)
	d := NewDecoder(bytes.NewReader(data))
	var got []types.ChunkRecord
	for rec := range d.Records() {
		got = append(got, rec)
	}
	if len(got) != 3 || got[1].Type != "foOB" || got[1].Length != 7 {
		t.Errorf("records = %v", got)
	}
}

func TestWriter_RejectsBadType(t *testing.T) {
	w := NewWriter(io.Discard)
	if err := w.WriteChunk("IHD", nil); err == nil {
		t.Error("expected error for 3-byte type code")
	}
}

func TestChecksum_KnownValue(t *testing.T) {
	// IEND with no data always carries this CRC.
	if got := Checksum(types.ChunkIEND, nil); got != 0xAE426082 {
		t.Errorf("Checksum(IEND) = %08x, want ae426082", got)
	}
}
