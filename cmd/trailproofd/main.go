package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"xdao.co/trailproof/config"
	"xdao.co/trailproof/server"
	"xdao.co/trailproof/storage/casregistry"
	"xdao.co/trailproof/verifier"

	_ "xdao.co/trailproof/storage/boltcas"
	_ "xdao.co/trailproof/storage/grpccas"
	_ "xdao.co/trailproof/storage/ipfs"
	_ "xdao.co/trailproof/storage/localfs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fs := flag.NewFlagSet("trailproofd", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML config file")
	listen := fs.String("listen", "", "Listen address (overrides [server].listen)")
	_ = fs.Parse(os.Args[1:])

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	logger := cfg.Logger(os.Stderr)

	content, closeFn, err := cfg.Content(casregistry.UsageDaemon, logger)
	if err != nil {
		logger.Error("open content storage", "err", err)
		os.Exit(2)
	}
	defer closeFn()

	index := cfg.Index()
	v := verifier.New(index, content, logger)
	v.ProbeTimeout = cfg.ProbeTimeout

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(&server.Handler{
		Verifier: v,
		Index:    index,
		Mode:     cfg.Compliance,
		Logger:   logger,
	})
	srv := &http.Server{Addr: cfg.Server.Listen, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("trailproofd listening", "addr", cfg.Server.Listen, "rpc", cfg.RPCURL, "mode", cfg.Compliance.String())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}
}
