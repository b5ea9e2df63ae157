package types

import (
	"time"

	"github.com/google/uuid"
)

// PassMeta identifies one validation pass over one chunk stream.
type PassMeta struct {
	// PassID is unique per pass.
	PassID string
	// Source names the stream (file path, "-" for stdin, or a caller label).
	Source string
	// StartedAt is when the pass began.
	StartedAt time.Time
}

// NewPassMeta creates pass metadata with a fresh pass ID.
func NewPassMeta(source string) *PassMeta {
	return &PassMeta{
		PassID:    uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}
