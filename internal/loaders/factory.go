package loaders

import (
	"errors"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

// NewEbpfProbe builds the probe loader named by program, attached to library.
func NewEbpfProbe(program string, library string) (types.Probe_loaders, error) {
	switch program {
	case types.LoaderClCalls:
		l, err := NewClCallsLoader(library)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, errors.New("unsupported or unknown program")
	}
}
