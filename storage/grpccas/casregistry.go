package grpccas

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "gRPC CAS client (talks to trailproof-casgrpcd)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Options: []casregistry.Option{
			{Key: "grpc-target", Help: "gRPC target host:port"},
			{Key: "grpc-timeout", Default: "0s", Help: "Per-RPC timeout; 0 disables"},
			{Key: "grpc-max-msg-bytes", Default: "0", Help: "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			target := strings.TrimSpace(cfg["grpc-target"])
			if target == "" {
				return nil, nil, fmt.Errorf("missing --grpc-target")
			}
			timeout, err := time.ParseDuration(cfg["grpc-timeout"])
			if err != nil {
				return nil, nil, fmt.Errorf("grpc-timeout: %w", err)
			}
			maxMsg, err := strconv.Atoi(cfg["grpc-max-msg-bytes"])
			if err != nil {
				return nil, nil, fmt.Errorf("grpc-max-msg-bytes: %w", err)
			}
			client, err := Dial(target, DialOptions{MaxMsgBytes: maxMsg})
			if err != nil {
				return nil, nil, err
			}
			client.Timeout = timeout
			return client, client.Close, nil
		},
	})
}
