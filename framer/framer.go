// Package framer reads the PNG container format into chunk records.
//
// The decoder checks the 8-byte signature, each chunk's declared length
// and type code, and the CRC32 over type and data. Chunk data is streamed
// through the checksum in bounded reads and never retained, so a record
// carries only type, length, ordinal, and offset.
//
// Field syntax of IHDR, PLTE and tEXt data is checked on the same reads,
// along with the palette an indexed image needs before its first IDAT.
package framer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"iter"

	"github.com/justapithecus/pngdoctor/types"
)

// Container constants.
const (
	// Signature is the 8-byte PNG magic number.
	Signature = "\x89PNG\r\n\x1a\n"
	// MaxChunkLength is the largest legal declared data length.
	MaxChunkLength = 1<<31 - 1
	// DefaultMaxFileSize caps total bytes read (20 MiB).
	DefaultMaxFileSize = 20 << 20
	// readSize bounds each data read. Must cover the largest bounded
	// chunk (PLTE, 768 bytes of data).
	readSize = 4 << 10
)

// FrameErrorKind classifies framing errors.
type FrameErrorKind int

const (
	// FrameErrorSignature indicates the stream is not a PNG.
	FrameErrorSignature FrameErrorKind = iota
	// FrameErrorPartial indicates a truncated chunk.
	FrameErrorPartial
	// FrameErrorTooLarge indicates the stream exceeds the file size cap.
	FrameErrorTooLarge
	// FrameErrorBadLength indicates a declared length over MaxChunkLength.
	FrameErrorBadLength
	// FrameErrorBadTypeCode indicates a type code that is not four ASCII letters.
	FrameErrorBadTypeCode
	// FrameErrorBadCRC indicates a checksum mismatch.
	FrameErrorBadCRC
	// FrameErrorSyntax indicates chunk data with malformed fields.
	FrameErrorSyntax
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorSignature:
		return "signature"
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorBadLength:
		return "bad_length"
	case FrameErrorBadTypeCode:
		return "bad_type_code"
	case FrameErrorBadCRC:
		return "bad_crc"
	case FrameErrorSyntax:
		return "syntax"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a container framing error.
// Every framing error ends the stream.
type FrameError struct {
	Kind FrameErrorKind
	// Offset is the byte offset of the chunk being read, -1 for the signature.
	Offset int64
	Msg    string
	Err    error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err is a framing error and returns it.
func IsFrameError(err error) (*FrameError, bool) {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxFileSize overrides the total byte cap. Non-positive values are ignored.
func WithMaxFileSize(n int64) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

// Decoder reads chunk records from a PNG byte stream.
type Decoder struct {
	r           io.Reader
	maxFileSize int64
	total       int64
	ordinal     int
	started     bool
	crc         hash.Hash32
	buf         []byte
	syntax      syntaxChecker
	err         error
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:           r,
		maxFileSize: DefaultMaxFileSize,
		crc:         crc32.NewIEEE(),
		buf:         make([]byte, readSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BytesRead returns the number of bytes consumed so far.
func (d *Decoder) BytesRead() int64 { return d.total }

// ReadChunk reads the next chunk and returns its record.
//
// Errors:
//   - io.EOF: stream ended cleanly after a complete chunk
//   - *FrameError: framing failure; the decoder is unusable afterwards
func (d *Decoder) ReadChunk() (types.ChunkRecord, error) {
	if d.err != nil {
		return types.ChunkRecord{}, d.err
	}
	rec, err := d.readChunk()
	if err != nil {
		d.err = err
	}
	return rec, err
}

func (d *Decoder) readChunk() (types.ChunkRecord, error) {
	if !d.started {
		d.started = true
		if err := d.readSignature(); err != nil {
			return types.ChunkRecord{}, err
		}
	}

	offset := d.total
	var head [8]byte

	// A clean end is EOF exactly at a chunk boundary.
	if _, err := d.readAt(head[:1], offset, true); err != nil {
		return types.ChunkRecord{}, err
	}
	if _, err := d.read(head[1:], offset); err != nil {
		return types.ChunkRecord{}, err
	}

	length := binary.BigEndian.Uint32(head[:4])
	if length > MaxChunkLength {
		return types.ChunkRecord{}, &FrameError{
			Kind:   FrameErrorBadLength,
			Offset: offset,
			Msg:    fmt.Sprintf("chunk claims %d bytes, must be no longer than %d", length, MaxChunkLength),
		}
	}

	ct, err := types.ParseChunkType(head[4:8])
	if err != nil {
		return types.ChunkRecord{}, &FrameError{
			Kind:   FrameErrorBadTypeCode,
			Offset: offset,
			Msg:    fmt.Sprintf("invalid type code for chunk at byte %d", offset),
			Err:    err,
		}
	}

	d.crc.Reset()
	d.crc.Write(head[4:8])
	d.syntax.begin(ct, int64(length))
	for remaining := int64(length); remaining > 0; {
		step := min(remaining, int64(len(d.buf)))
		if _, err := d.read(d.buf[:step], offset); err != nil {
			return types.ChunkRecord{}, err
		}
		d.crc.Write(d.buf[:step])
		d.syntax.write(d.buf[:step])
		remaining -= step
	}

	var tail [4]byte
	if _, err := d.read(tail[:], offset); err != nil {
		return types.ChunkRecord{}, err
	}
	if declared, actual := binary.BigEndian.Uint32(tail[:]), d.crc.Sum32(); declared != actual {
		return types.ChunkRecord{}, &FrameError{
			Kind:   FrameErrorBadCRC,
			Offset: offset,
			Msg: fmt.Sprintf("CRC32 check failed for %s at byte %d: declared %08x, computed %08x",
				ct, offset, declared, actual),
		}
	}

	if msg := d.syntax.end(); msg != "" {
		return types.ChunkRecord{}, &FrameError{
			Kind:   FrameErrorSyntax,
			Offset: offset,
			Msg:    fmt.Sprintf("%s at byte %d", msg, offset),
		}
	}

	rec := types.ChunkRecord{
		Type:    ct,
		Length:  int64(length),
		Ordinal: d.ordinal,
		Offset:  offset,
	}
	d.ordinal++
	return rec, nil
}

func (d *Decoder) readSignature() error {
	var sig [len(Signature)]byte
	if _, err := d.read(sig[:], -1); err != nil {
		var fe *FrameError
		if errors.As(err, &fe) && fe.Kind == FrameErrorPartial {
			return &FrameError{Kind: FrameErrorSignature, Offset: -1, Msg: "stream too short for PNG signature", Err: fe.Err}
		}
		return err
	}
	if string(sig[:]) != Signature {
		return &FrameError{
			Kind:   FrameErrorSignature,
			Offset: -1,
			Msg:    fmt.Sprintf("expected PNG signature %q, got %q", Signature, sig[:]),
		}
	}
	return nil
}

// read fills p completely, enforcing the file size cap.
// A read that ends early is a partial frame.
func (d *Decoder) read(p []byte, offset int64) (int, error) {
	return d.readAt(p, offset, false)
}

// readAt is read with boundary handling: when boundary is set, EOF before
// any byte is returned as io.EOF.
func (d *Decoder) readAt(p []byte, offset int64, boundary bool) (int, error) {
	if d.total+int64(len(p)) > d.maxFileSize {
		if boundary {
			if n, err := io.ReadFull(d.r, p[:1]); n == 0 && errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
		}
		return 0, &FrameError{
			Kind:   FrameErrorTooLarge,
			Offset: offset,
			Msg:    fmt.Sprintf("attempted to read past file size limit: %d bytes", d.maxFileSize),
		}
	}
	n, err := io.ReadFull(d.r, p)
	d.total += int64(n)
	switch {
	case err == nil:
		return n, nil
	case boundary && n == 0 && errors.Is(err, io.EOF):
		return 0, io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, &FrameError{
			Kind:   FrameErrorPartial,
			Offset: offset,
			Msg:    fmt.Sprintf("expected to read %d bytes, got %d, total read %d", len(p), n, d.total),
			Err:    io.ErrUnexpectedEOF,
		}
	default:
		return n, err
	}
}

// Records yields chunk records until the stream ends or fails.
// Check Err after iteration.
func (d *Decoder) Records() iter.Seq[types.ChunkRecord] {
	return func(yield func(types.ChunkRecord) bool) {
		for {
			rec, err := d.ReadChunk()
			if err != nil {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Err returns the first non-EOF error encountered by the decoder.
func (d *Decoder) Err() error {
	if errors.Is(d.err, io.EOF) {
		return nil
	}
	return d.err
}
