package recorder

import (
	"path/filepath"
	"runtime"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

// Here returns the source location of its caller.
func Here() types.SourceLocation {
	return caller(2)
}

func caller(skip int) types.SourceLocation {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return types.SourceLocation{Function: "unknown", File: "unknown"}
	}
	fn := "unknown"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return types.SourceLocation{
		Function: fn,
		File:     filepath.Base(file),
		Line:     uint32(line),
	}
}
