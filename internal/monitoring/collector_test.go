package monitoring

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestCollectAggregatesRuns(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	good, err := st.CreateRun(ctx, "interpret")
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, good.ID, &model.RunSummary{
		Pipeline: "interpret", Succeeded: 40, Failed: 2, Coerced: 3,
	}, nil))

	bad, err := st.CreateRun(ctx, "extract")
	require.NoError(t, err)
	require.NoError(t, st.RecordEvent(ctx, bad.ID, store.Event{Kind: store.EventRowFailed, Row: 7}))
	require.NoError(t, st.FinishRun(ctx, bad.ID, nil, eris.New("source unreadable")))

	_, err = st.CreateRun(ctx, "quality") // still running
	require.NoError(t, err)

	snap, err := NewCollector(st).Collect(ctx, 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsSucceeded)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 0.5, snap.RunFailRate, 1e-9)

	assert.Equal(t, 40, snap.RowsSucceeded)
	assert.Equal(t, 2, snap.RowsFailed)
	assert.Equal(t, 3, snap.RowsCoerced)
	assert.Equal(t, 1, snap.Events[store.EventRowFailed])

	assert.True(t, snap.Healthy(0.5))
	assert.False(t, snap.Healthy(0.25))
}

func TestCollectEmptyWindow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	snap, err := NewCollector(st).Collect(ctx, 1)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.RunFailRate)
	assert.True(t, snap.Healthy(0))
	assert.Empty(t, snap.Events)
}
