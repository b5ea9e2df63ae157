package framer

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/justapithecus/pngdoctor/types"
)

// Writer writes a PNG container: the signature followed by chunks.
// The signature is written before the first chunk.
type Writer struct {
	w       io.Writer
	started bool
}

// NewWriter creates a chunk writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteChunk writes one chunk with a correct CRC.
func (w *Writer) WriteChunk(t types.ChunkType, data []byte) error {
	return w.WriteChunkCRC(t, data, Checksum(t, data))
}

// WriteChunkCRC writes one chunk with the given CRC, correct or not.
func (w *Writer) WriteChunkCRC(t types.ChunkType, data []byte, crc uint32) error {
	if len(t) != 4 {
		return fmt.Errorf("chunk type %q must be 4 bytes", string(t))
	}
	if int64(len(data)) > MaxChunkLength {
		return fmt.Errorf("chunk %s data of %d bytes exceeds %d", t, len(data), MaxChunkLength)
	}
	if !w.started {
		if _, err := io.WriteString(w.w, Signature); err != nil {
			return fmt.Errorf("failed to write signature: %w", err)
		}
		w.started = true
	}

	buf := make([]byte, 0, 12+len(data))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, t...)
	buf = append(buf, data...)
	buf = binary.BigEndian.AppendUint32(buf, crc)
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", t, err)
	}
	return nil
}

// Checksum returns the CRC32 (IEEE) over type code and data.
func Checksum(t types.ChunkType, data []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte(t))
	h.Write(data)
	return h.Sum32()
}
