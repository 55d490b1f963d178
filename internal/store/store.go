// Package store persists an audit trail of pipeline runs: one record per
// invocation plus per-row events (coercions, positional matches, batch
// failures) so every reconciliation decision can be traced afterwards.
// The store is strictly secondary — the workbook stays the source of truth
// and store failures never abort a pipeline.
package store

import (
	"context"
	"time"

	"github.com/sells-group/vpat-cli/internal/model"
)

// Event kinds recorded against a run.
const (
	EventCoerced           = "conformance_coerced"
	EventMatchedByPosition = "matched_by_position"
	EventNoResponse        = "no_response"
	EventBatchFailed       = "batch_failed"
	EventRowFailed         = "row_failed"
)

// Event is one per-row audit entry.
type Event struct {
	Kind   string
	Row    int
	Detail string
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	// Pipeline restricts to one pipeline name when non-empty.
	Pipeline string
	// StartedAfter restricts to runs started after this instant when non-zero.
	StartedAfter time.Time
	// Limit caps the result; 0 means no cap.
	Limit int
}

// Store records pipeline runs and their audit events.
type Store interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context, pipeline string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, summary *model.RunSummary, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	RecordEvent(ctx context.Context, runID string, ev Event) error
	EventCounts(ctx context.Context, since time.Time) (map[string]int, error)
	Close() error
}
