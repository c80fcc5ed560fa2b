package compute

import (
	"fmt"

	"github.com/ALEYI17/InfraSight_gputrace/internal/compute/host"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

const BackendHost = "host"

func NewDevice(backend string) (types.Device, error) {
	switch backend {
	case BackendHost:
		return host.NewDevice(), nil
	default:
		return nil, fmt.Errorf("unsupported or unknown compute backend %q", backend)
	}
}
