package reader

import "errors"

// ParseMetricsRecord converts a Lode record (map[string]any) to a MetricsSnapshot.
// Handles both int64 (direct writes) and float64 (JSON round-trips) for numeric fields.
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts: toString(record["ts"]),

		PassesStarted:  toInt64(record["passes_started_total"]),
		PassesAccepted: toInt64(record["passes_accepted_total"]),
		PassesRejected: toInt64(record["passes_rejected_total"]),
		FramingErrors:  toInt64(record["framing_errors_total"]),

		ChunksObserved:  toInt64(record["chunks_observed_total"]),
		ViolationsTotal: toInt64(record["violations_total"]),
		IPCDecodeErrors: toInt64(record["ipc_decode_errors_total"]),

		DecisionsProceed:  toInt64(record["decisions_proceed_total"]),
		DecisionsDegraded: toInt64(record["decisions_degraded_total"]),
		DecisionsHalt:     toInt64(record["decisions_halt_total"]),

		LodeWriteSuccess: toInt64(record["lode_write_success_total"]),
		LodeWriteFailure: toInt64(record["lode_write_failure_total"]),

		AdapterPublishSuccess: toInt64(record["adapter_publish_success_total"]),
		AdapterPublishFailure: toInt64(record["adapter_publish_failure_total"]),

		Policy:         toString(record["policy"]),
		Mode:           toString(record["mode"]),
		StorageBackend: toString(record["storage_backend"]),
		RunID:          toString(record["run_id"]),
		Source:         toString(record["source"]),
	}

	if vbc, ok := record["violations_by_category"]; ok && vbc != nil {
		snap.ViolationsByCategory = parseCounts(vbc)
	}

	// The write path always populates these; missing values indicate
	// data corruption or a malformed record.
	required := []struct{ field, value string }{
		{"ts", snap.Ts},
		{"run_id", snap.RunID},
		{"policy", snap.Policy},
		{"mode", snap.Mode},
		{"storage_backend", snap.StorageBackend},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, errors.New("metrics record missing required field: " + r.field)
		}
	}

	return snap, nil
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// parseCounts converts a category count map from Lode record format.
// Handles both map[string]int64 (direct) and map[string]any (JSON round-trip).
func parseCounts(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		result := make(map[string]int64, len(m))
		for k, val := range m {
			result[k] = toInt64(val)
		}
		return result
	default:
		return nil
	}
}
