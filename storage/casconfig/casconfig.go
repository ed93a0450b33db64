// Package casconfig opens the content storage described by the [cas] section
// of the trailproof config file.
//
//	[cas]
//	write_policy = "fallback"
//	probe_timeout = "2s"
//
//	[[cas.backends]]
//	name = "grpc"
//	config = { grpc-target = "cas.internal:7777" }
//
//	[[cas.backends]]
//	name = "bolt"
//	id = "local"
//	config = { bolt-path = "/var/lib/trailproof/cas.db" }
//
// Backend config keys mirror the backend's flag names. Backends must be linked
// into the binary with a blank import.
package casconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/casregistry"
)

// WritePolicy selects how several backends are composed.
type WritePolicy string

const (
	// WriteFirst writes to the first backend; reads fall back in order.
	WriteFirst WritePolicy = "first"
	// WriteAll writes everywhere and requires every backend to agree on the CID.
	WriteAll WritePolicy = "all"
	// WriteFallback uses the first backend while it answers a probe, else the rest.
	WriteFallback WritePolicy = "fallback"
)

type Config struct {
	WritePolicy  WritePolicy     `toml:"write_policy"`
	ProbeTimeout string          `toml:"probe_timeout"`
	Backends     []BackendConfig `toml:"backends"`

	// Logger receives fallback notices; nil discards them.
	Logger *slog.Logger `toml:"-"`
}

type BackendConfig struct {
	// Name is the casregistry backend name ("grpc", "localfs", "bolt", "ipfs").
	Name string `toml:"name"`
	// ID distinguishes two instances of one backend; it defaults to Name.
	ID     string            `toml:"id"`
	Config map[string]string `toml:"config"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if seen[b.id()] {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = true
	}
	if _, err := c.probeTimeout(); err != nil {
		return err
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll, WriteFallback:
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

func (c Config) probeTimeout() (time.Duration, error) {
	if c.ProbeTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ProbeTimeout)
	if err != nil {
		return 0, fmt.Errorf("casconfig: invalid probe_timeout: %w", err)
	}
	return d, nil
}

// Open opens every backend and composes them per WritePolicy. The returned
// close function releases backends in reverse order of opening.
func (c Config) Open(usage casregistry.Usage) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	named, closeAll, err := openAll(c.Backends, usage)
	if err != nil {
		return nil, nil, err
	}
	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}

	adapters := make([]storage.CAS, len(named))
	for i, n := range named {
		adapters[i] = n.CAS
	}
	switch c.WritePolicy {
	case WriteAll:
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	case WriteFallback:
		timeout, _ := c.probeTimeout()
		return &storage.FallbackCAS{
			Primary:      adapters[0],
			Fallback:     storage.MultiCAS{Adapters: adapters[1:]},
			ProbeTimeout: timeout,
			Logger:       c.Logger,
		}, closeAll, nil
	default:
		return storage.MultiCAS{Adapters: adapters}, closeAll, nil
	}
}

func openAll(backends []BackendConfig, usage casregistry.Usage) ([]storage.NamedCAS, func() error, error) {
	named := make([]storage.NamedCAS, 0, len(backends))
	var closers []func() error
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	for _, b := range backends {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}
	return named, closeAll, nil
}
