package types

type Probe_loaders interface {
	Name() string
	Counts() (map[string]uint64, error)
	Close() error
}
