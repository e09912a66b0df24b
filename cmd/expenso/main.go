package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenso/internal/apiclient"
	"expenso/internal/cache"
	"expenso/internal/catalog"
	"expenso/internal/charts"
	"expenso/internal/cli"
	apphttp "expenso/internal/http"
	"expenso/internal/log"
	"expenso/internal/state"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)

	api, err := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithLogger(logger.WithComponent(log.ComponentAPIClient).Slog()))
	if err != nil {
		logger.Error("Failed to create API client", log.FieldError, err, "base_url", cfg.APIBaseURL)
		os.Exit(1)
	}

	categories := catalog.NewService(api.Categories, cfg.CategoryCacheTTL,
		logger.WithComponent(log.ComponentCatalog).Slog())

	sessions := state.NewManager(state.Deps{
		API:         api,
		Persister:   res.Sessions,
		Events:      res.Events,
		Catalog:     categories,
		Logger:      logger.WithComponent(log.ComponentSession).Slog(),
		RefreshSkew: cfg.TokenRefreshSkew,
	}, cfg.SessionCacheSize, cfg.SessionTTL)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	caches.Register("sessions", sessions.Cache())
	caches.Register("categories", categories.Cache())
	caches.StartCleanup(5 * time.Minute)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Sessions:       sessions,
		Charts:         charts.NewGenerator(),
		Health:         res,
		Logger:         logger,
		CookieName:     cfg.SessionCookieName,
		CookieSecure:   cfg.CookieSecure,
		SessionTTL:     cfg.SessionTTL,
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting expenso server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"session_store", cfg.SessionStore,
		"broker", res.BrokerStatus(context.Background()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
