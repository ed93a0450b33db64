package ipfs

import (
	"os"

	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repository via the ipfs CLI",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Options: []casregistry.Option{
			{Key: "ipfs-bin", Default: "ipfs", Help: "Path to the ipfs binary"},
			{Key: "ipfs-path", Help: "IPFS_PATH for the ipfs binary; empty inherits the environment"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			opts := Options{Bin: cfg["ipfs-bin"]}
			if p := cfg["ipfs-path"]; p != "" {
				opts.Env = append(os.Environ(), "IPFS_PATH="+p)
			}
			return New(opts), nil, nil
		},
	})
}
