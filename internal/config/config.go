package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/kelseyhightower/envconfig"
)

const (
	envPrefix   = "GPUTRACE"
	backendHost = "host"
)

type Config struct {
	Nodename     string   `envconfig:"NODENAME"`
	ServerAdress string   `envconfig:"SERVER_ADDRESS"`
	Serverport   string   `envconfig:"SERVER_PORT" default:"50051"`
	// EnableProbes count calls into ProbeLibrary. The host backend never
	// calls it, so with BACKEND=host the counts stay at zero.
	EnableProbes []string `envconfig:"PROBES"`
	ProbeLibrary string   `envconfig:"PROBE_LIBRARY" default:"/usr/lib/x86_64-linux-gnu/libOpenCL.so.1"`

	Backend   string `envconfig:"BACKEND" default:"host"`
	Profiling bool   `envconfig:"PROFILING" default:"true"`

	ContextLabel string  `envconfig:"CONTEXT_LABEL" default:"MyContext"`
	SpanName     string  `envconfig:"SPAN_NAME" default:"OCL Dummy"`
	BufferLen    int     `envconfig:"BUFFER_LEN" default:"1048576"`
	Scalar       float32 `envconfig:"SCALAR" default:"10"`
	SampleIndex  int     `envconfig:"SAMPLE_INDEX" default:"200007"`

	ChromeTrace   string        `envconfig:"CHROME_TRACE"`
	MetricsAddr   string        `envconfig:"METRICS_ADDR"`
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL" default:"1s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev   bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load reads the configuration from GPUTRACE_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Nodename == "" {
		cfg.Nodename = hostname()
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.BufferLen < 1 {
		return fmt.Errorf("buffer length must be positive, got %d", c.BufferLen)
	}
	if c.SampleIndex < 0 || c.SampleIndex >= c.BufferLen {
		return fmt.Errorf("sample index %d outside buffer of %d elements", c.SampleIndex, c.BufferLen)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval)
	}
	return nil
}

// IdleProbes lists the enabled probes that cannot see any call made by
// the configured backend.
func (c *Config) IdleProbes() []string {
	if c.Backend != backendHost {
		return nil
	}
	var idle []string
	for _, p := range c.EnableProbes {
		if p == types.LoaderClCalls {
			idle = append(idle, p)
		}
	}
	return idle
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
