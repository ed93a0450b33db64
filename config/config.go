// Package config loads trailproof settings from a TOML file.
//
// Example:
//
//	rpc_url = "http://127.0.0.1:9933"
//	rpc_timeout = "10s"
//	probe_timeout = "2s"
//	compliance = "strict"
//	log_level = "info"
//
//	[namespaces]
//	pallet = "RagStorage"
//	tag_search = "RagApi_find_by_tags"
//
//	[cas]
//	write_policy = "fallback"
//	[[cas.backends]]
//	name = "ipfs"
//	[[cas.backends]]
//	name = "localfs"
//	config = { localfs-dir = "/var/lib/trailproof/cas" }
//
//	[server]
//	listen = ":8080"
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"xdao.co/trailproof/compliance"
	"xdao.co/trailproof/ledger/rpc"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/casconfig"
	"xdao.co/trailproof/storage/casregistry"
	"xdao.co/trailproof/workflow"
)

type Server struct {
	Listen string `toml:"listen"`
}

type Config struct {
	RPCURL       string                    `toml:"rpc_url"`
	RPCTimeout   time.Duration             `toml:"rpc_timeout"`
	ProbeTimeout time.Duration             `toml:"probe_timeout"`
	Compliance   compliance.ComplianceMode `toml:"compliance"`
	LogLevel     string                    `toml:"log_level"`

	Namespaces workflow.Namespaces `toml:"namespaces"`
	// CAS is optional; without backends, proofs verify without schema checks.
	CAS    casconfig.Config `toml:"cas"`
	Server Server           `toml:"server"`
}

// Default returns a configuration that talks to a local node.
func Default() Config {
	return Config{
		RPCURL:       "http://127.0.0.1:9933",
		RPCTimeout:   10 * time.Second,
		ProbeTimeout: 2 * time.Second,
		Compliance:   compliance.Permissive,
		LogLevel:     "info",
		Namespaces:   workflow.DefaultNamespaces(),
		Server:       Server{Listen: ":8080"},
	}
}

// LoadFile reads path over Default. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, finish(cfg, md)
}

// Parse is LoadFile over an in-memory document.
func Parse(doc string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(doc, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, finish(cfg, md)
}

func finish(cfg Config, md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("config: rpc_url is required")
	}
	if c.RPCTimeout <= 0 || c.ProbeTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.Namespaces.Pallet == "" || c.Namespaces.Trails == "" || c.Namespaces.Rags == "" {
		return errors.New("config: namespaces.pallet, rags and trails are required")
	}
	if len(c.CAS.Backends) > 0 {
		if err := c.CAS.Validate(); err != nil {
			return err
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Ledger returns the JSON-RPC ledger reader.
func (c Config) Ledger() *rpc.Client {
	return rpc.New(c.RPCURL, c.RPCTimeout)
}

// Index returns a workflow index over the configured ledger.
func (c Config) Index() *workflow.Index {
	return workflow.New(c.Ledger(), c.Namespaces)
}

// Content opens the configured content storage, or returns a nil CAS when
// none is configured. The close function is never nil.
func (c Config) Content(usage casregistry.Usage, logger *slog.Logger) (storage.CAS, func() error, error) {
	if len(c.CAS.Backends) == 0 {
		return nil, func() error { return nil }, nil
	}
	cc := c.CAS
	cc.Logger = logger
	if cc.ProbeTimeout == "" {
		cc.ProbeTimeout = c.ProbeTimeout.String()
	}
	return cc.Open(usage)
}

// Logger returns a text logger at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("config: invalid log_level %q", s)
	}
	return l, nil
}
