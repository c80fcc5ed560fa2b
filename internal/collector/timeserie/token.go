package timeserie

import (
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

func RecordToToken(rec types.SpanRecord) *types.SpanToken {
	eventType := types.EVENT_GPU_SPAN
	if rec.Host {
		eventType = types.EVENT_HOST_SPAN
	}
	return &types.SpanToken{
		ID:          rec.ID,
		EventType:   eventType,
		Name:        rec.Name,
		Function:    rec.Location.Function,
		File:        rec.Location.File,
		Line:        rec.Location.Line,
		GpuStartNs:  rec.GpuStartNs,
		GpuEndNs:    rec.GpuEndNs,
		StartNs:     rec.StartNs,
		EndNs:       rec.EndNs,
		HostBeginNs: rec.HostBeginNs,
		HostEndNs:   rec.HostEndNs,
	}
}
