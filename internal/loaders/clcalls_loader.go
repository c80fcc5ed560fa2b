package loaders

import (
	"fmt"
	"os"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// clSymbols are the OpenCL entry points the workload goes through: the
// calibration marker, the kernel launch and the completion wait.
var clSymbols = []string{
	"clEnqueueMarkerWithWaitList",
	"clEnqueueNDRangeKernel",
	"clWaitForEvents",
}

// ClCallsLoader counts calls this process makes into the OpenCL library.
// Each symbol gets a uprobe that increments its slot of an array map.
type ClCallsLoader struct {
	library string
	symbols []string
	counts  *ebpf.Map
	progs   []*ebpf.Program
	links   []link.Link
}

func NewClCallsLoader(library string) (*ClCallsLoader, error) {
	logger := logutil.GetLogger()

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, err
	}

	counts, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "cl_calls",
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: uint32(len(clSymbols)),
	})
	if err != nil {
		return nil, fmt.Errorf("create count map: %w", err)
	}

	l := &ClCallsLoader{library: library, counts: counts}

	ex, err := link.OpenExecutable(library)
	if err != nil {
		logger.Error("error", zap.Error(err))
		l.Close()
		return nil, err
	}

	pid := os.Getpid()
	for i, sym := range clSymbols {
		prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
			Name:         fmt.Sprintf("cl_count_%d", i),
			Type:         ebpf.Kprobe,
			Instructions: countingInstructions(counts.FD(), uint32(i)),
			License:      "Dual MIT/GPL",
		})
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("load program for %s: %w", sym, err)
		}
		l.progs = append(l.progs, prog)

		up, err := ex.Uprobe(sym, prog, &link.UprobeOptions{PID: pid})
		if err != nil {
			logger.Warn("failed to attach uprobe", zap.String("function", sym), zap.Error(err))
			continue
		}
		l.links = append(l.links, up)
		l.symbols = append(l.symbols, sym)
		logger.Info("attached uprobe", zap.String("function", sym), zap.String("library", library))
	}

	if len(l.links) == 0 {
		l.Close()
		return nil, fmt.Errorf("no uprobe attached to %s", library)
	}
	return l, nil
}

// countingInstructions increments the u64 at key in the array map fd.
func countingInstructions(fd int, key uint32) asm.Instructions {
	return asm.Instructions{
		asm.StoreImm(asm.RFP, -4, int64(key), asm.Word),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -4),
		asm.LoadMapPtr(asm.R1, fd),
		asm.FnMapLookupElem.Call(),
		asm.JEq.Imm(asm.R0, 0, "exit"),
		asm.Mov.Imm(asm.R1, 1),
		asm.StoreXAdd(asm.R0, asm.R1, asm.DWord),
		asm.Mov.Imm(asm.R0, 0).WithSymbol("exit"),
		asm.Return(),
	}
}

func (l *ClCallsLoader) Name() string {
	return types.LoaderClCalls
}

// Counts returns the number of calls seen per attached symbol.
func (l *ClCallsLoader) Counts() (map[string]uint64, error) {
	out := make(map[string]uint64, len(l.symbols))
	for i, sym := range clSymbols {
		if !l.attached(sym) {
			continue
		}
		var n uint64
		if err := l.counts.Lookup(uint32(i), &n); err != nil {
			return nil, fmt.Errorf("read count for %s: %w", sym, err)
		}
		out[sym] = n
	}
	return out, nil
}

func (l *ClCallsLoader) attached(sym string) bool {
	for _, s := range l.symbols {
		if s == sym {
			return true
		}
	}
	return false
}

func (l *ClCallsLoader) Close() error {
	var err error
	for _, up := range l.links {
		err = multierr.Append(err, up.Close())
	}
	for _, p := range l.progs {
		err = multierr.Append(err, p.Close())
	}
	if l.counts != nil {
		err = multierr.Append(err, l.counts.Close())
	}
	l.links, l.progs, l.counts = nil, nil, nil
	return err
}
