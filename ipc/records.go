package ipc

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/justapithecus/pngdoctor/types"
)

// RecordStream reads chunk records from a frame stream and checks the
// terminal record count.
type RecordStream struct {
	dec   *FrameDecoder
	count int
	ended bool
	err   error
}

// Records creates a record stream over r.
func Records(r io.Reader) *RecordStream {
	return &RecordStream{dec: NewFrameDecoder(r)}
}

// All yields records until end_of_stream or the first error.
// Check Err after iteration.
func (s *RecordStream) All() iter.Seq[types.ChunkRecord] {
	return func(yield func(types.ChunkRecord) bool) {
		for {
			rec, err := s.Next()
			if err != nil {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Next returns the next record, or io.EOF after a valid end_of_stream.
func (s *RecordStream) Next() (types.ChunkRecord, error) {
	if s.err != nil {
		return types.ChunkRecord{}, s.err
	}
	rec, err := s.next()
	if err != nil {
		s.err = err
	}
	return rec, err
}

func (s *RecordStream) next() (types.ChunkRecord, error) {
	if s.ended {
		return types.ChunkRecord{}, io.EOF
	}

	payload, err := s.dec.ReadFrame()
	if errors.Is(err, io.EOF) {
		return types.ChunkRecord{}, &FrameError{
			Kind: FrameErrorProtocol,
			Msg:  fmt.Sprintf("stream ended after %d records without %s", s.count, EndOfStreamType),
		}
	}
	if err != nil {
		return types.ChunkRecord{}, err
	}

	frame, err := DecodeFrame(payload)
	if err != nil {
		return types.ChunkRecord{}, err
	}

	switch f := frame.(type) {
	case *RecordFrame:
		s.count++
		return f.Record(), nil
	case *EndFrame:
		s.ended = true
		if f.Count != s.count {
			return types.ChunkRecord{}, &FrameError{
				Kind: FrameErrorProtocol,
				Msg:  fmt.Sprintf("%s declares %d records, received %d", EndOfStreamType, f.Count, s.count),
			}
		}
		return types.ChunkRecord{}, io.EOF
	default:
		return types.ChunkRecord{}, &FrameError{Kind: FrameErrorProtocol, Msg: fmt.Sprintf("unexpected frame %T", frame)}
	}
}

// Count returns the number of records received.
func (s *RecordStream) Count() int { return s.count }

// Err returns the first error other than a clean end.
func (s *RecordStream) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}
