package collector

import (
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

// LogBatches drains batches into the log until the channel closes. It stands
// in for the gRPC client when no collector server is configured.
func LogBatches(batches <-chan *types.SpanBatch) int {
	logger := logutil.GetLogger()
	count := 0

	for batch := range batches {
		count++
		for _, ev := range batch.Batch {
			switch {
			case ev.Token != nil:
				tk := ev.Token
				logger.Info("Span received",
					zap.String("node", batch.Node),
					zap.String("context", ev.Context),
					zap.String("name", tk.Name),
					zap.String("function", tk.Function),
					zap.String("file", tk.File),
					zap.Uint32("line", tk.Line),
					zap.Int64("gpu_start_ns", tk.GpuStartNs),
					zap.Int64("gpu_end_ns", tk.GpuEndNs),
					zap.Int64("start_ns", tk.StartNs),
					zap.Int64("end_ns", tk.EndNs),
					zap.Int64("duration_ns", tk.EndNs-tk.StartNs))
			case ev.Window != nil:
				w := ev.Window
				logger.Info("Aggregated GPU fingerprint",
					zap.String("node", batch.Node),
					zap.String("context", ev.Context),
					zap.Uint64("spans", w.SpanCount),
					zap.Uint64("host_spans", w.HostSpanCount),
					zap.Uint64("total_gpu_ns", w.TotalGpuNs),
					zap.Float64("avg_gpu_ns", w.AvgGpuNs),
					zap.Uint64("max_gpu_ns", w.MaxGpuNs),
					zap.Float64("avg_end_skew_ns", w.AvgEndSkewNs),
					zap.Float64("gpu_busy_fraction", w.GpuBusyFraction),
					zap.Float64("span_rate", w.SpanRate))
			}
		}
	}
	return count
}
