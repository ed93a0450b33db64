// Command trailproof-casgrpcd serves a content store (step payloads, sealed
// envelopes, schemas) over gRPC so verifiers and submitters can share it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"xdao.co/trailproof/storage/casregistry"
	"xdao.co/trailproof/storage/grpccas"

	_ "xdao.co/trailproof/storage/boltcas"
	_ "xdao.co/trailproof/storage/ipfs"
	_ "xdao.co/trailproof/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("trailproof-casgrpcd", flag.ContinueOnError)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	flags := casregistry.RegisterFlags(fs, casregistry.UsageDaemon)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("backend", *backend)

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageDaemon, flags)
	if err != nil {
		logger.Error("open backend", "err", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", "addr", *listen, "err", err)
		return 1
	}

	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	logger.Info("serving", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", "err", err)
		return 1
	}
	return 0
}
