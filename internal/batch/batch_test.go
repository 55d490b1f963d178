package batch

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		want  []int
	}{
		{"twelve by five", 12, 5, []int{5, 5, 2}},
		{"exact multiple", 10, 5, []int{5, 5}},
		{"single short batch", 3, 5, []int{3}},
		{"size zero is unbounded", 7, 0, []int{7}},
		{"negative size is unbounded", 7, -1, []int{7}},
		{"empty input", 0, 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.n)
			for i := range items {
				items[i] = i
			}

			batches := Split(items, tt.size)

			var sizes []int
			var flat []int
			for _, b := range batches {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.want, sizes)
			assert.Equal(t, items[:len(flat)], flat, "order must be preserved")
			if tt.n > 0 {
				assert.Len(t, flat, tt.n)
			}
		})
	}
}

func TestRunSequentialWithDelay(t *testing.T) {
	const delay = 40 * time.Millisecond
	items := make([]int, 12)
	batches := Split(items, 5)
	require.Len(t, batches, 3)

	var callTimes []time.Time
	start := time.Now()

	r := Runner[int]{Delay: delay}
	err := r.Run(context.Background(), batches,
		func(ctx context.Context, index int, items []int) error {
			callTimes = append(callTimes, time.Now())
			return nil
		},
		nil,
	)

	require.NoError(t, err)
	require.Len(t, callTimes, 3)

	// First batch starts without delay.
	assert.Less(t, callTimes[0].Sub(start), delay)
	// Batches 2 and 3 are paced.
	assert.GreaterOrEqual(t, callTimes[1].Sub(callTimes[0]), delay)
	assert.GreaterOrEqual(t, callTimes[2].Sub(callTimes[1]), delay)
	// No trailing delay after the final batch.
	assert.Less(t, time.Since(callTimes[2]), delay)
}

func TestRunContinuesPastFailedBatch(t *testing.T) {
	batches := [][]string{{"a", "b"}, {"c"}, {"d"}}

	var called []int
	var failed []int

	r := Runner[string]{}
	err := r.Run(context.Background(), batches,
		func(ctx context.Context, index int, items []string) error {
			called = append(called, index)
			if index == 1 {
				return eris.New("provider returned 500")
			}
			return nil
		},
		func(index int, items []string, err error) {
			failed = append(failed, index)
		},
	)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, called)
	assert.Equal(t, []int{1}, failed)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	batches := [][]int{{1}, {2}, {3}}

	var calls int
	r := Runner[int]{Delay: time.Hour}
	err := r.Run(ctx, batches,
		func(ctx context.Context, index int, items []int) error {
			calls++
			cancel()
			return nil
		},
		nil,
	)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
