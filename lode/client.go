package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/metrics"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"source", "day", "verdict", "record_kind"}

// newDataset opens the pngdoctor dataset with the shared layout and codec.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// LodeClient is a Lode-backed implementation of Client.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	// mu serializes dataset writes from concurrent passes.
	mu sync.Mutex

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store
// factory. Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// Config returns the client's partition configuration.
func (c *LodeClient) Config() Config { return c.config }

// WriteReports writes one report record per report in a single snapshot.
func (c *LodeClient) WriteReports(ctx context.Context, reports []*doctor.Report) error {
	if len(reports) == 0 {
		return nil
	}

	records := make([]any, 0, len(reports))
	for _, r := range reports {
		records = append(records, toReportRecordMap(r, c.config))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindReport))
	}
	return nil
}

// WriteMetrics writes the run metrics snapshot as one record.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	record := toMetricsRecordMap(snap, c.config, completedAt)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindMetrics))
	}
	return nil
}

// partitionPath describes the target partition in error messages.
func (c *LodeClient) partitionPath(kind string) string {
	return fmt.Sprintf("%s/source=%s/record_kind=%s", c.config.Dataset, c.config.Source, kind)
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ Client = (*LodeClient)(nil)
