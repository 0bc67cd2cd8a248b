package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// LogPruner deletes retrieval logs older than a cutoff and reports how
// many rows were removed.
type LogPruner interface {
	DeleteRetrievalLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionWorker prunes aged retrieval logs so the decision log table
// does not grow without bound on long-lived personal deployments.
type RetentionWorker struct {
	pruner    LogPruner
	retention time.Duration
}

// NewRetentionWorker creates a RetentionWorker that keeps logs for the
// given retention window.
func NewRetentionWorker(pruner LogPruner, retention time.Duration) *RetentionWorker {
	return &RetentionWorker{
		pruner:    pruner,
		retention: retention,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RetentionWorker) ProcessJobs(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.retention)

	deleted, err := w.pruner.DeleteRetrievalLogsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune retrieval logs: %w", err)
	}

	if deleted > 0 {
		log.Printf("pruned %d retrieval logs older than %s", deleted, cutoff.Format(time.RFC3339))
	}

	return nil
}
