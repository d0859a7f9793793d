package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternalApril/emberkv/internal/config"
	"github.com/eternalApril/emberkv/internal/logger"
	"github.com/eternalApril/emberkv/internal/metrics"
	"github.com/eternalApril/emberkv/internal/server"
	"github.com/eternalApril/emberkv/internal/storage"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configDir := pflag.StringP("config", "c", ".", "directory containing config.yaml")
	pflag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("emberkv stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("emberkv starting",
		zap.String("port", cfg.Server.Port),
		zap.Uint("shards", cfg.Storage.Shards),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)

	db, err := storage.NewShardedMapStorage(cfg.Storage.Shards)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.RegisterKeyCount(db.Len)
	}

	engine := server.NewEngine(db, m, log)
	srv := server.NewServer(engine, m, log)

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", address, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(listener); !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("metrics listening on", zap.String("address", cfg.Metrics.Address))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if metricsSrv != nil {
			metricsSrv.Shutdown(shutdownCtx) //nolint:errcheck
		}

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Shutdown timed out, forcing exit", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		}
		return nil
	})

	return g.Wait()
}
