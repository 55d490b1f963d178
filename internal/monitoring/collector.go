// Package monitoring summarizes the audit store into point-in-time health
// snapshots for the stats command and the serve endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsSucceeded int     `json:"runs_succeeded"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Row totals aggregated from run summaries.
	RowsSucceeded int `json:"rows_succeeded"`
	RowsFailed    int `json:"rows_failed"`
	RowsCoerced   int `json:"rows_coerced"`

	// Audit events by kind.
	Events map[string]int `json:"events"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Healthy reports whether the snapshot's fail rate stays under maxFailRate.
// A window with no finished runs is healthy.
func (s *MetricsSnapshot) Healthy(maxFailRate float64) bool {
	return s.RunFailRate <= maxFailRate
}

// Collector gathers metrics from the audit store.
type Collector struct {
	store store.Store
}

func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of runs and events over the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		StartedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusSucceeded:
			snap.RunsSucceeded++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Summary != nil {
			snap.RowsSucceeded += r.Summary.Succeeded
			snap.RowsFailed += r.Summary.Failed
			snap.RowsCoerced += r.Summary.Coerced
		}
	}

	if finished := snap.RunsSucceeded + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	snap.Events, err = c.store.EventCounts(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count events")
	}

	return snap, nil
}
