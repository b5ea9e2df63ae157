package lode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pngdoctor/doctor"
)

// FileWriter stores full report documents next to the report records.
// Files land at Hive-partitioned paths under files/, bypassing Dataset
// segment and manifest machinery entirely.
type FileWriter interface {
	// PutReport writes the report's JSON as files/<pass_id>.json.
	PutReport(ctx context.Context, report *doctor.Report) error
}

var _ FileWriter = (*LodeClient)(nil)

// PutReport writes the report sidecar to the Lode store.
// The store is initialized lazily from the client's factory.
func (c *LodeClient) PutReport(ctx context.Context, report *doctor.Report) error {
	path := c.buildFilePath(report)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.PassID, err)
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return wrap(err, "put_file", path)
	}
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return wrap(err, "put_file", path)
	}
	return nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// buildFilePath computes the Hive-partitioned path for a report sidecar.
// Format: datasets/<dataset>/partitions/source=<s>/day=<d>/verdict=<v>/files/<pass_id>.json
func (c *LodeClient) buildFilePath(report *doctor.Report) string {
	return fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/verdict=%s/files/%s.json",
		c.config.Dataset,
		c.config.Source,
		report.Day(),
		report.Outcome,
		report.PassID,
	)
}

// StubFileWriter records PutReport calls for testing.
type StubFileWriter struct {
	mu      sync.Mutex
	Reports []*doctor.Report
}

// NewStubFileWriter creates a new stub file writer.
func NewStubFileWriter() *StubFileWriter {
	return &StubFileWriter{}
}

// PutReport implements FileWriter by recording the call.
func (w *StubFileWriter) PutReport(_ context.Context, report *doctor.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Reports = append(w.Reports, report)
	return nil
}

var _ FileWriter = (*StubFileWriter)(nil)
