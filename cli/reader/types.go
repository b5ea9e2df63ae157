package reader

// ReportItem is the list view of one stored report record.
type ReportItem struct {
	PassID     string   `json:"pass_id" yaml:"pass_id"`
	RunID      string   `json:"run_id" yaml:"run_id"`
	File       string   `json:"file" yaml:"file"`
	Source     string   `json:"source" yaml:"source"`
	Day        string   `json:"day" yaml:"day"`
	Verdict    string   `json:"verdict" yaml:"verdict"`
	Decision   string   `json:"decision,omitempty" yaml:"decision,omitempty"`
	Chunks     int      `json:"chunks" yaml:"chunks"`
	Violations int      `json:"violations" yaml:"violations"`
	Categories []string `json:"categories" yaml:"categories"`
	StartedAt  string   `json:"started_at" yaml:"started_at"`
}

// ReportStats aggregates stored report records.
type ReportStats struct {
	Total      int              `json:"total" yaml:"total"`
	Accepted   int              `json:"accepted" yaml:"accepted"`
	Rejected   int              `json:"rejected" yaml:"rejected"`
	Failed     int              `json:"failed" yaml:"failed"`
	Halted     int              `json:"halted" yaml:"halted"`
	Degraded   int              `json:"degraded" yaml:"degraded"`
	Chunks     int64            `json:"chunks" yaml:"chunks"`
	Violations int64            `json:"violations" yaml:"violations"`
	ByCategory map[string]int64 `json:"by_category" yaml:"by_category"`
	BySource   map[string]int   `json:"by_source" yaml:"by_source"`
}

// MetricsSnapshot is the CLI view of a stored run metrics record.
type MetricsSnapshot struct {
	Ts string `json:"ts" yaml:"ts"`

	// Pass lifecycle
	PassesStarted  int64 `json:"passes_started_total" yaml:"passes_started_total"`
	PassesAccepted int64 `json:"passes_accepted_total" yaml:"passes_accepted_total"`
	PassesRejected int64 `json:"passes_rejected_total" yaml:"passes_rejected_total"`
	FramingErrors  int64 `json:"framing_errors_total" yaml:"framing_errors_total"`

	// Validation
	ChunksObserved       int64            `json:"chunks_observed_total" yaml:"chunks_observed_total"`
	ViolationsTotal      int64            `json:"violations_total" yaml:"violations_total"`
	ViolationsByCategory map[string]int64 `json:"violations_by_category,omitempty" yaml:"violations_by_category,omitempty"`
	IPCDecodeErrors      int64            `json:"ipc_decode_errors_total" yaml:"ipc_decode_errors_total"`

	// Decisions
	DecisionsProceed  int64 `json:"decisions_proceed_total" yaml:"decisions_proceed_total"`
	DecisionsDegraded int64 `json:"decisions_degraded_total" yaml:"decisions_degraded_total"`
	DecisionsHalt     int64 `json:"decisions_halt_total" yaml:"decisions_halt_total"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success_total" yaml:"lode_write_success_total"`
	LodeWriteFailure int64 `json:"lode_write_failure_total" yaml:"lode_write_failure_total"`

	// Adapter
	AdapterPublishSuccess int64 `json:"adapter_publish_success_total" yaml:"adapter_publish_success_total"`
	AdapterPublishFailure int64 `json:"adapter_publish_failure_total" yaml:"adapter_publish_failure_total"`

	// Dimensions
	Policy         string `json:"policy" yaml:"policy"`
	Mode           string `json:"mode" yaml:"mode"`
	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	RunID          string `json:"run_id" yaml:"run_id"`
	Source         string `json:"source" yaml:"source"`
}
