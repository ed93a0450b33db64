package casregistry

import (
	"flag"
	"strings"
	"testing"

	"xdao.co/trailproof/storage"
)

func TestRegisterFlagsAndOpen(t *testing.T) {
	var got map[string]string
	MustRegister(Backend{
		Name:  "registry-test",
		Usage: UsageDaemon,
		Options: []Option{
			{Key: "registry-test-dir", Default: "/tmp/a", Help: "dir"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			got = cfg
			return storage.NewMemory(), nil, nil
		},
	})

	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	flags := RegisterFlags(fs, UsageDaemon)
	if err := fs.Parse([]string{"--registry-test-dir", "/srv/blocks"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Open("registry-test", UsageDaemon, flags); err != nil {
		t.Fatal(err)
	}
	if got["registry-test-dir"] != "/srv/blocks" {
		t.Fatalf("flag value not passed through: %v", got)
	}

	if _, _, err := Open("registry-test", UsageCLI, flags); err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected usage rejection, got %v", err)
	}
	if _, _, err := OpenWithConfig("registry-test", UsageDaemon, map[string]string{"bogus": "x"}); err == nil {
		t.Fatalf("expected unknown key rejection")
	}
	if _, _, err := Open("no-such-backend", UsageDaemon, flags); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	if err := Register(Backend{Name: "registry-test", Usage: UsageDaemon, Open: noopOpen}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func noopOpen(map[string]string) (storage.CAS, func() error, error) { return nil, nil, nil }
