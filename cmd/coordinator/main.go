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

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/consortia/consortia/internal/app"
	"github.com/consortia/consortia/internal/organization"
	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/role"
	"github.com/consortia/consortia/internal/rule"
	"github.com/consortia/consortia/internal/task"
	"github.com/consortia/consortia/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadCoordinatorConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogFormat)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	ruleRepo := rule.NewRepository(dbpool)
	if err := rule.Seed(ctx, ruleRepo); err != nil {
		logger.Error("seed rule catalog", slog.Any("error", err))
		os.Exit(1)
	}
	catalog, err := rule.LoadCatalog(ctx, ruleRepo)
	if err != nil {
		logger.Error("load rule catalog", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("rule catalog loaded", slog.Int("rules", catalog.Len()))

	codec, err := principal.NewCodec(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("token codec", slog.Any("error", err))
		os.Exit(1)
	}

	resolver := principal.NewResolver(codec, principal.NewRepository(dbpool), logger)
	guard := principal.Guard{Resolver: resolver, Logger: logger}
	engine := permission.NewEngine(permission.NewRepository(dbpool))
	perms := permission.Middleware{Engine: engine, Logger: logger}

	tokenService := token.NewService(token.NewRepository(dbpool), codec, logger, cfg.LoginMaxAttempts, cfg.LoginLockout)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Guard:               guard,
		Permissions:         perms,
		Catalog:             catalog,
		TokenHandler:        token.NewHandler(logger, tokenService, guard),
		OrganizationHandler: organization.NewHandler(logger, organization.NewRepository(dbpool), perms),
		RoleHandler:         role.NewHandler(logger, role.NewService(role.NewRepository(dbpool), catalog), perms),
		TaskHandler:         task.NewHandler(logger, task.NewRepository(dbpool), perms, guard),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("coordinator listening", slog.String("addr", cfg.AppAddr))
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
		logger.Error("coordinator stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("coordinator stopped")
}
