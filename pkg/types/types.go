package types

const (
	EVENT_GPU_SPAN  = 1
	EVENT_HOST_SPAN = 2
)

const (
	BATCH_SPAN_SERIES = "gpu_span_series"
	BATCH_SPAN_WINDOW = "gpu_span_window"
)

// Loader names accepted in GPUTRACE_PROBES.
const (
	LoaderClCalls = "clcalls"
)

// Kernels in the fixed device program. KernelAdd computes
// buffer[i] += scalar * AddKernelFactor.
const (
	KernelAdd       = "add"
	AddKernelFactor = 3.5
)

// GpuContextType names the API a GPU context's timestamps come from.
type GpuContextType uint8

const (
	GpuContextInvalid GpuContextType = iota
	GpuContextOpenGL
	GpuContextVulkan
	GpuContextOpenCL
	GpuContextDirect3D12
	GpuContextDirect3D11
	GpuContextHost
)

func (k GpuContextType) String() string {
	switch k {
	case GpuContextOpenGL:
		return "opengl"
	case GpuContextVulkan:
		return "vulkan"
	case GpuContextOpenCL:
		return "opencl"
	case GpuContextDirect3D12:
		return "d3d12"
	case GpuContextDirect3D11:
		return "d3d11"
	case GpuContextHost:
		return "host"
	default:
		return "invalid"
	}
}
