package boltcas

import (
	"fmt"

	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "bolt",
		Description: "Single-file bbolt database",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Options: []casregistry.Option{
			{Key: "bolt-path", Help: "bbolt database file"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			path := cfg["bolt-path"]
			if path == "" {
				return nil, nil, fmt.Errorf("missing --bolt-path")
			}
			cas, err := Open(path)
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
	})
}
