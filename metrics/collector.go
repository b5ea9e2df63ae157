// Package metrics provides per-run metrics collection for inspection runs.
//
// The Collector accumulates counters across every pass of a single run.
// It is a leaf package with no internal dependencies: violation categories
// arrive as plain strings. Policy decision counters are absorbed from
// policy.Stats at run completion rather than recorded live, avoiding
// double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Pass lifecycle
	PassesStarted  int64 `json:"passes_started"`
	PassesAccepted int64 `json:"passes_accepted"`
	PassesRejected int64 `json:"passes_rejected"`
	FramingErrors  int64 `json:"framing_errors"`

	// Validation
	ChunksObserved       int64            `json:"chunks_observed"`
	ViolationsTotal      int64            `json:"violations_total"`
	ViolationsByCategory map[string]int64 `json:"violations_by_category"`
	IPCDecodeErrors      int64            `json:"ipc_decode_errors"`

	// Decisions (absorbed from policy.Stats at run completion)
	DecisionsProceed  int64 `json:"decisions_proceed"`
	DecisionsDegraded int64 `json:"decisions_degraded"`
	DecisionsHalt     int64 `json:"decisions_halt"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Adapter
	AdapterPublishSuccess int64 `json:"adapter_publish_success"`
	AdapterPublishFailure int64 `json:"adapter_publish_failure"`

	// Dimensions (informational, set at construction)
	Policy         string `json:"policy"`
	Mode           string `json:"mode"`
	StorageBackend string `json:"storage_backend"`
	RunID          string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	passesStarted  int64
	passesAccepted int64
	passesRejected int64
	framingErrors  int64

	chunksObserved       int64
	violationsTotal      int64
	violationsByCategory map[string]int64
	ipcDecodeErrors      int64

	decisionsProceed  int64
	decisionsDegraded int64
	decisionsHalt     int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	adapterPublishSuccess int64
	adapterPublishFailure int64

	policy         string
	mode           string
	storageBackend string
	runID          string
}

// NewCollector creates a Collector with dimension labels.
// policy, mode, and storageBackend are required; runID is optional.
func NewCollector(policy, mode, storageBackend, runID string) *Collector {
	return &Collector{
		violationsByCategory: make(map[string]int64),
		policy:               policy,
		mode:                 mode,
		storageBackend:       storageBackend,
		runID:                runID,
	}
}

// add increments one counter under the lock.
func (c *Collector) add(counter *int64, n int64) {
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Pass lifecycle ---

// IncPassStarted records a pass start.
func (c *Collector) IncPassStarted() {
	if c == nil {
		return
	}
	c.add(&c.passesStarted, 1)
}

// IncPassAccepted records a pass whose verdict was Accept.
func (c *Collector) IncPassAccepted() {
	if c == nil {
		return
	}
	c.add(&c.passesAccepted, 1)
}

// IncPassRejected records a pass whose verdict was Reject.
func (c *Collector) IncPassRejected() {
	if c == nil {
		return
	}
	c.add(&c.passesRejected, 1)
}

// IncFramingError records a pass that ended in a framing or I/O error.
func (c *Collector) IncFramingError() {
	if c == nil {
		return
	}
	c.add(&c.framingErrors, 1)
}

// --- Validation ---

// AddChunks records n observed chunk records.
func (c *Collector) AddChunks(n int64) {
	if c == nil {
		return
	}
	c.add(&c.chunksObserved, n)
}

// IncViolation records one violation of the given category.
func (c *Collector) IncViolation(category string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.violationsTotal++
	c.violationsByCategory[category]++
	c.mu.Unlock()
}

// IncIPCDecodeErrors records a record stream decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.ipcDecodeErrors, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure, 1)
}

// --- Adapter ---

// IncAdapterPublishSuccess records a delivered adapter event.
func (c *Collector) IncAdapterPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.adapterPublishSuccess, 1)
}

// IncAdapterPublishFailure records an adapter event that failed after retries.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.adapterPublishFailure, 1)
}

// --- Decisions (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies decision counters from policy.Stats.
// Called once after run completion with the final policy stats snapshot.
func (c *Collector) AbsorbPolicyStats(proceeded, degraded, halted int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decisionsProceed = proceeded
	c.decisionsDegraded = degraded
	c.decisionsHalt = halted
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byCategory := make(map[string]int64, len(c.violationsByCategory))
	for k, v := range c.violationsByCategory {
		byCategory[k] = v
	}

	return Snapshot{
		PassesStarted:  c.passesStarted,
		PassesAccepted: c.passesAccepted,
		PassesRejected: c.passesRejected,
		FramingErrors:  c.framingErrors,

		ChunksObserved:       c.chunksObserved,
		ViolationsTotal:      c.violationsTotal,
		ViolationsByCategory: byCategory,
		IPCDecodeErrors:      c.ipcDecodeErrors,

		DecisionsProceed:  c.decisionsProceed,
		DecisionsDegraded: c.decisionsDegraded,
		DecisionsHalt:     c.decisionsHalt,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		Policy:         c.policy,
		Mode:           c.mode,
		StorageBackend: c.storageBackend,
		RunID:          c.runID,
	}
}
