// Package chrometrace renders completed spans in the Chrome trace event
// format, viewable in chrome://tracing or Perfetto.
package chrometrace

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/bytedance/sonic"
)

// traceEvent mirrors the fields of a Chrome trace event. Ts and Dur are
// microseconds.
type traceEvent struct {
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Ts   float64        `json:"ts"`
	Ph   string         `json:"ph"`
	Dur  float64        `json:"dur"`
	Name string         `json:"name"`
	Cat  string         `json:"cat,omitempty"`
	Args map[string]any `json:"args"`
}

// Tracer collects span records and renders each context as its own
// process. Host spans share one process.
type Tracer struct {
	mu      sync.Mutex
	records []types.SpanRecord
}

func New() *Tracer {
	return &Tracer{}
}

func (t *Tracer) Update(rec types.SpanRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

func (t *Tracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Marshal writes the collected trace to w. Timestamps are offsets from the
// earliest span start.
func (t *Tracer) Marshal(w io.Writer) error {
	t.mu.Lock()
	records := append([]types.SpanRecord(nil), t.records...)
	t.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartNs < records[j].StartNs
	})

	var origin int64
	if len(records) > 0 {
		origin = records[0].StartNs
	}

	pids := make(map[string]int)
	events := make([]traceEvent, 0, len(records))
	for _, rec := range records {
		pid, ok := pids[rec.Context]
		if !ok {
			pid = len(pids) + 1
			pids[rec.Context] = pid
			events = append(events, traceEvent{
				Pid:  pid,
				Ph:   "M",
				Name: "process_name",
				Args: map[string]any{
					"name": fmt.Sprintf("%s (%s)", rec.Context, rec.Kind),
				},
			})
		}

		cat := "gpu"
		args := map[string]any{
			"id":       rec.ID,
			"function": rec.Location.Function,
			"location": fmt.Sprintf("%s:%d", rec.Location.File, rec.Location.Line),
		}
		if rec.Host {
			cat = "host"
		} else {
			args["gpu_start_ns"] = rec.GpuStartNs
			args["gpu_end_ns"] = rec.GpuEndNs
		}

		events = append(events, traceEvent{
			Pid:  pid,
			Ts:   float64(rec.StartNs-origin) / 1e3,
			Ph:   "X",
			Dur:  float64(rec.DurationNs()) / 1e3,
			Name: rec.Name,
			Cat:  cat,
			Args: args,
		})
	}

	envelope := struct {
		TraceEvents     []traceEvent `json:"traceEvents"`
		DisplayTimeUnit string       `json:"displayTimeUnit"`
	}{events, "ns"}

	data, err := sonic.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the trace to path, replacing any existing file.
func (t *Tracer) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return t.Marshal(f)
}
