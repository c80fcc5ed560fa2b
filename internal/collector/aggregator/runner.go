package aggregator

import (
	"context"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

func (ga *GPUAggregator) Run(ctx context.Context) <-chan *types.SpanBatch {
	out := make(chan *types.SpanBatch)

	go func() {
		defer close(out)
		ticker := time.NewTicker(ga.windowDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if batch := ga.FlushAll(); batch != nil {
					out <- batch
				}
				return
			case <-ticker.C:
				if batch := ga.Flush(); batch != nil {
					out <- batch
				}
			}
		}
	}()

	return out
}
