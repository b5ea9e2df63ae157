// Package ipc implements the chunk record stream.
//
// An external framer process can feed the validator by writing
// length-prefixed msgpack frames: one chunk_record frame per chunk,
// then a single end_of_stream frame carrying the record count.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/pngdoctor/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (1 MiB), including length prefix.
	MaxFrameSize = 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// ChunkRecordType is the type discriminant for chunk record frames.
const ChunkRecordType = "chunk_record"

// EndOfStreamType is the type discriminant for the terminal frame.
const EndOfStreamType = "end_of_stream"

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorProtocol indicates a well-formed frame out of place:
	// unknown type, missing terminator, or count mismatch.
	FrameErrorProtocol
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
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

// IsFatal returns true if this error ends the stream.
// Partial and oversized frames are fatal because framing is lost.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// RecordFrame carries one chunk record.
type RecordFrame struct {
	Type      string `msgpack:"type"`
	ChunkType string `msgpack:"chunk_type"`
	Length    int64  `msgpack:"length"`
	Ordinal   int    `msgpack:"ordinal"`
	Offset    int64  `msgpack:"offset"`
}

// Record converts the frame to a chunk record.
func (f *RecordFrame) Record() types.ChunkRecord {
	return types.ChunkRecord{
		Type:    types.ChunkType(f.ChunkType),
		Length:  f.Length,
		Ordinal: f.Ordinal,
		Offset:  f.Offset,
	}
}

// EndFrame terminates a record stream.
type EndFrame struct {
	Type  string `msgpack:"type"`
	Count int    `msgpack:"count"`
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload and returns either a *RecordFrame or an *EndFrame.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case ChunkRecordType:
		return DecodeRecord(payload)
	case EndOfStreamType:
		return DecodeEnd(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorProtocol,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

// DecodeRecord decodes a payload as a RecordFrame.
func DecodeRecord(payload []byte) (*RecordFrame, error) {
	var frame RecordFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode chunk record",
			Err:  err,
		}
	}
	return &frame, nil
}

// DecodeEnd decodes a payload as an EndFrame.
func DecodeEnd(payload []byte) (*EndFrame, error) {
	var frame EndFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode end of stream",
			Err:  err,
		}
	}
	return &frame, nil
}

// FrameEncoder writes length-prefixed msgpack frames.
type FrameEncoder struct {
	writer io.Writer
	count  int
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteRecord writes one chunk_record frame.
func (e *FrameEncoder) WriteRecord(rec types.ChunkRecord) error {
	err := e.writeFrame(&RecordFrame{
		Type:      ChunkRecordType,
		ChunkType: string(rec.Type),
		Length:    rec.Length,
		Ordinal:   rec.Ordinal,
		Offset:    rec.Offset,
	})
	if err != nil {
		return err
	}
	e.count++
	return nil
}

// WriteEnd writes the end_of_stream frame with the number of records written.
func (e *FrameEncoder) WriteEnd() error {
	return e.writeFrame(&EndFrame{Type: EndOfStreamType, Count: e.count})
}

func (e *FrameEncoder) writeFrame(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	if _, err := e.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
