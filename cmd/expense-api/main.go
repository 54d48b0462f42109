package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"dailyexpense/internal/auth"
	"dailyexpense/internal/backend"
	"dailyexpense/internal/cli"
	"dailyexpense/internal/config"
	"dailyexpense/internal/identity"
	apphttp "dailyexpense/internal/http"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	tokens := identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	resolver, err := identity.New(identity.Mode(cfg.IdentityMode), tokens)
	if err != nil {
		return err
	}

	var authSvc *auth.Service
	if resolver.Mode() == identity.ModeToken {
		authSvc, err = auth.NewService(result.Backend, tokens, cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("create auth service: %w", err)
		}
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Expenses:           services.NewExpenseService(result.Backend, result.Publisher, cfg.StoreTimeout),
		Auth:               authSvc,
		Identity:           resolver,
		Health:             result.Backend,
		Logger:             logger,
		Backend:            backendCfg.Type.String(),
		Env:                cfg.AppEnv,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server",
			"port", cfg.Port,
			"backend", backendCfg.Type,
			"identity", resolver.Mode(),
			"env", cfg.AppEnv,
			"events", result.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
