package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/store"
)

// Auditor records run events best-effort. A nil Auditor (or nil store) is
// valid and records nothing; store failures are logged, never surfaced —
// the audit trail must not be able to fail a pipeline.
type Auditor struct {
	store store.Store
	runID string
}

// NewAuditor opens a run record for one pipeline invocation. On store
// failure it returns a disabled auditor.
func NewAuditor(ctx context.Context, s store.Store, pipeline string) *Auditor {
	if s == nil {
		return nil
	}
	run, err := s.CreateRun(ctx, pipeline)
	if err != nil {
		zap.L().Warn("audit: create run failed", zap.Error(err))
		return nil
	}
	return &Auditor{store: s, runID: run.ID}
}

// RunID returns the recorded run id, or "" for a disabled auditor.
func (a *Auditor) RunID() string {
	if a == nil {
		return ""
	}
	return a.runID
}

// Event records one audit event.
func (a *Auditor) Event(ctx context.Context, ev store.Event) {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.RecordEvent(ctx, a.runID, ev); err != nil {
		zap.L().Warn("audit: record event failed",
			zap.String("kind", ev.Kind),
			zap.Error(err),
		)
	}
}

// Finish closes the run record with the final summary.
func (a *Auditor) Finish(ctx context.Context, summary *model.RunSummary, runErr error) {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.FinishRun(ctx, a.runID, summary, runErr); err != nil {
		zap.L().Warn("audit: finish run failed", zap.Error(err))
	}
}
