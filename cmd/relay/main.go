package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/consortia/consortia/internal/app"
	"github.com/consortia/consortia/internal/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadRelayConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogFormat)

	relayServer := relay.NewServer(relay.Options{
		CoordinatorURL: cfg.CoordinatorURL,
		Timeout:        cfg.OutboundTimeout,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      relayServer.Router(),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("relay listening",
			slog.String("addr", cfg.AppAddr),
			slog.String("coordinator", cfg.CoordinatorURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("relay stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("relay stopped")
}
