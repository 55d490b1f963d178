// Package batch splits ordered work into fixed-size batches and drives one
// remote call per batch, strictly sequentially, with a mandatory pause
// between batches. Sequencing is a protocol requirement — request payloads
// and provider rate limits assume no two batches are ever in flight at
// once.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Split partitions items into order-preserving batches of at most size
// elements. size 0 (or negative) means a single batch containing all items.
// The last batch may be shorter.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// Runner executes batches one at a time. Delay is the mandatory pause
// between consecutive remote calls; the first batch starts immediately and
// no pause follows the final batch.
type Runner[T any] struct {
	Delay time.Duration
}

// Run invokes call once per batch, in order. A batch's failure is handed to
// onError and processing continues with the next batch — a single remote
// failure never aborts the run. Only context cancellation stops the loop
// early.
func (r Runner[T]) Run(
	ctx context.Context,
	batches [][]T,
	call func(ctx context.Context, index int, items []T) error,
	onError func(index int, items []T, err error),
) error {
	// rate.Every(<=0) is Inf, so a zero Delay runs back-to-back.
	limiter := rate.NewLimiter(rate.Every(r.Delay), 1)

	for i, items := range batches {
		if err := limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "batch: wait for next batch")
		}

		zap.L().Debug("batch: dispatching",
			zap.Int("batch", i+1),
			zap.Int("of", len(batches)),
			zap.Int("items", len(items)),
		)

		if err := call(ctx, i, items); err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(ctx.Err(), "batch: cancelled")
			}
			zap.L().Warn("batch: remote call failed, continuing",
				zap.Int("batch", i+1),
				zap.Int("items", len(items)),
				zap.Error(err),
			)
			if onError != nil {
				onError(i, items, err)
			}
		}
	}

	return nil
}
