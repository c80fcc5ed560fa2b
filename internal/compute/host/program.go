package host

import (
	"fmt"
	"runtime"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"golang.org/x/sync/errgroup"
)

const minChunk = 1 << 14

type kernelFunc func(globalSize int, args []any) error

var program = map[string]kernelFunc{
	types.KernelAdd: addKernel,
}

// addKernel: buffer[gid] += scalar * AddKernelFactor
func addKernel(globalSize int, args []any) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: add takes 2 arguments, got %d", ErrKernelArgs, len(args))
	}
	buf, ok := args[0].(*Buffer)
	if !ok {
		return fmt.Errorf("%w: add argument 0 is %T, want host buffer", ErrKernelArgs, args[0])
	}
	scalar, ok := args[1].(float32)
	if !ok {
		return fmt.Errorf("%w: add argument 1 is %T, want float32", ErrKernelArgs, args[1])
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()
	if globalSize > len(buf.data) {
		return fmt.Errorf("%w: %d work items over %d elements", ErrInvalidWorkSize, globalSize, len(buf.data))
	}
	data := buf.data
	delta := scalar * types.AddKernelFactor
	return parallelFor(globalSize, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] += delta
		}
	})
}

func parallelFor(n int, body func(lo, hi int)) error {
	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			body(lo, hi)
			return nil
		})
	}
	return g.Wait()
}
