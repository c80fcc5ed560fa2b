package timeserie

import (
	"context"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

// Run flushes on every tick and once more when ctx is cancelled.
func (tc *TimeSeriesCollector) Run(ctx context.Context) <-chan *types.SpanBatch {

	out := make(chan *types.SpanBatch)

	go func() {
		defer close(out)
		ticker := time.NewTicker(tc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if batch := tc.Flush(); batch != nil {
					out <- batch
				}
				return
			case <-ticker.C:
				if batch := tc.Flush(); batch != nil {
					out <- batch
				}
			}
		}
	}()

	return out
}
