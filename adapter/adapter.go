// Package adapter defines the notification boundary for finished passes.
//
// Adapters publish one event per validated stream to a downstream system
// (an HTTP endpoint, a Redis channel). The inspector owns adapter
// lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypeValidationCompleted is the event_type of every published event.
const EventTypeValidationCompleted = "validation_completed"

// ValidationCompletedEvent is the payload published when a pass finishes.
type ValidationCompletedEvent struct {
	ReportVersion  string   `json:"report_version"`
	EventType      string   `json:"event_type"` // always "validation_completed"
	PassID         string   `json:"pass_id"`
	RunID          string   `json:"run_id,omitempty"`
	Source         string   `json:"source"`
	Day            string   `json:"day"`
	Outcome        string   `json:"outcome"` // accept, reject, error
	Decision       string   `json:"decision,omitempty"`
	ChunkCount     int      `json:"chunk_count"`
	ViolationCount int      `json:"violation_count"`
	Categories     []string `json:"categories,omitempty"`
	StoragePath    string   `json:"storage_path,omitempty"`
	Timestamp      string   `json:"timestamp"` // RFC 3339
	DurationMs     int64    `json:"duration_ms"`
}

// Adapter publishes validation events to a downstream system.
// Implementations must be safe for concurrent Publish calls.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *ValidationCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. Each further retry
// doubles it.
const BaseBackoff = 500 * time.Millisecond

// Backoff returns the delay before retry attempt i (i >= 1).
func Backoff(i int) time.Duration {
	if i < 1 {
		return 0
	}
	return time.Duration(1<<uint(i-1)) * BaseBackoff
}

// Retry runs op up to 1+retries times with exponential backoff between
// attempts. A nil stop treats every error as retriable; when stop
// returns true the error is returned immediately. name prefixes
// returned errors.
func Retry(ctx context.Context, name string, retries int, op func(context.Context) error, stop func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if stop != nil && stop(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
