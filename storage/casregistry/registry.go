// Package casregistry lets binaries select CAS backends by name at run time.
package casregistry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"xdao.co/trailproof/storage"
)

// Option is one backend configuration key. Each Option is also exposed as a
// command-line flag of the same name.
type Option struct {
	Key     string
	Default string
	Help    string
}

// Backend is a build-time plugin that can open a storage.CAS implementation.
//
// Backends typically register themselves in init():
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
//
// The binary must import the backend package for registration to occur.
type Backend struct {
	Name        string
	Description string
	Usage       Usage
	Options     []Option

	// Open constructs the CAS from config values keyed by Option.Key.
	// It returns an optional close function.
	Open func(cfg map[string]string) (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("casregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Flags holds values parsed from flags registered by RegisterFlags.
type Flags map[string]*string

// RegisterFlags registers the options of all backends matching usage on fs.
//
// This enables single-pass flag parsing (Go's flag package rejects unknown flags).
func RegisterFlags(fs *flag.FlagSet, usage Usage) Flags {
	out := Flags{}
	for _, b := range List(usage) {
		for _, o := range b.Options {
			if _, dup := out[o.Key]; dup {
				continue
			}
			out[o.Key] = fs.String(o.Key, o.Default, o.Help+" (for --backend="+b.Name+")")
		}
	}
	return out
}

// Config returns the flag values relevant to backend name.
func (f Flags) Config(name string) map[string]string {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	cfg := map[string]string{}
	if !ok {
		return cfg
	}
	for _, o := range b.Options {
		if v, ok := f[o.Key]; ok && v != nil {
			cfg[o.Key] = *v
		}
	}
	return cfg
}

// Open opens the named backend from parsed flags.
func Open(name string, usage Usage, flags Flags) (storage.CAS, func() error, error) {
	return OpenWithConfig(name, usage, flags.Config(name))
}

// OpenWithConfig opens the named backend if it exists and matches usage.
// Missing keys take their Option defaults; unknown keys are rejected.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("backend %q not supported in this binary", name)
	}
	merged := make(map[string]string, len(b.Options))
	known := make(map[string]bool, len(b.Options))
	for _, o := range b.Options {
		merged[o.Key] = o.Default
		known[o.Key] = true
	}
	for k, v := range cfg {
		if !known[k] {
			return nil, nil, fmt.Errorf("backend %q: unknown config key %q", name, k)
		}
		merged[k] = v
	}
	return b.Open(merged)
}
