package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyscenes/internal/batch"
	"storyscenes/internal/http/handlers"
	"storyscenes/internal/http/httpapi"
	"storyscenes/internal/infra"
	"storyscenes/internal/infra/geoip"
	"storyscenes/internal/middleware"
	"storyscenes/internal/providers/genai"
	"storyscenes/internal/scenegen"
	"storyscenes/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := infra.NewLogger(cfg.AppEnv)
	logger.Info().Str("env", cfg.AppEnv).Str("port", cfg.Port).Msg("starting scene generation service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store batch.Store
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer pool.Close()

		pgStore := batch.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
		store = pgStore
		logger.Info().Msg("using postgres batch store")
	} else {
		store = batch.NewMemoryStore(cfg.BatchTTL)
		logger.Info().Dur("ttl", cfg.BatchTTL).Msg("using in-memory batch store")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, locale detection degraded")
	}
	var countryLookup middleware.CountryLookup
	if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage initialization failed")
	}

	genaiClient, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("genai client initialization failed")
	}
	if genaiClient.Synthetic() {
		logger.Warn().Msg("no GEMINI_API_KEY set, serving synthetic scene images")
	}

	invoker := scenegen.NewInvoker(scenegen.NewGeminiGenerator(genaiClient), fileStore, logger)

	orchestrator := batch.NewOrchestrator(ctx, store, invoker, logger, batch.Options{
		Concurrency:   cfg.SceneConcurrency,
		TaskTimeout:   cfg.SceneTimeout,
		RatePerMinute: cfg.ProviderRatePerMin,
	})

	app := &handlers.App{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orchestrator,
		Invoker:      invoker,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, countryLookup))

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()
	logger.Info().Str("addr", ":"+cfg.Port).Msg("http server listening")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	if resolver != nil {
		if closer, ok := resolver.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	logger.Info().Msg("shutdown complete")
}
