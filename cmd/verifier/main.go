// cmd/verifier/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"challenge-verifier/internal/api"
	"challenge-verifier/internal/common/config"
	"challenge-verifier/internal/common/database"
	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/observability"
	"challenge-verifier/internal/verification/category"
	"challenge-verifier/internal/verification/oracle"
	"challenge-verifier/internal/verification/preview"
	"challenge-verifier/internal/verification/prompts"
	"challenge-verifier/internal/verification/verify"
	"challenge-verifier/pkg/ruleset"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "json", "stderr")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting challenge verifier...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("backend", cfg.Oracle.Backend),
	)

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	// --- Rules ---
	rules := ruleset.Default()
	if cfg.Rules.Path != "" {
		rules, err = ruleset.LoadRuleset(cfg.Rules.Path)
		if err != nil {
			zapLog.Fatal("ruleset load failed", zap.String("path", cfg.Rules.Path), zap.Error(err))
		}
	}
	zapLog.Info("Ruleset loaded",
		zap.String("version", rules.Version),
		zap.Int("categories", len(rules.Categories)),
	)

	mapper := category.NewMapper(rules)
	catalog := prompts.NewCatalog(rules)

	// --- Similarity oracle ---
	ctx := context.Background()

	var backend oracle.Oracle
	switch cfg.Oracle.Backend {
	case config.BackendRemote:
		// The per-call deadline comes from WithTimeout; the client timeout only backstops it.
		backend = oracle.NewRemote(cfg.Oracle.Remote.BaseURL, 2*cfg.Oracle.Timeout)
		zapLog.Info("Remote oracle configured", zap.String("baseURL", cfg.Oracle.Remote.BaseURL))

	default:
		var cache oracle.TextCache = oracle.NewMemoryTextCache()
		if cfg.Oracle.Cache.Enabled {
			redis := database.NewRedis(cfg.Database.Redis)
			err = retryWithBackoff(func() error {
				return redis.Ping(ctx)
			}, 5, time.Second, zapLog, "Redis connection")
			if err != nil {
				zapLog.Fatal("redis failed after retries", zap.Error(err))
			}
			defer redis.Close()
			zapLog.Info("Redis connected successfully")

			cache = oracle.NewTieredTextCache(cache,
				oracle.NewRedisTextCache(redis.Client, cfg.Oracle.Cache.Prefix, cfg.Oracle.Cache.TTL, log))
		}

		clip, err := oracle.NewClip(oracle.ClipOptions{
			ModelName:         cfg.Oracle.ModelName,
			Device:            cfg.Oracle.Device,
			SharedLibraryPath: cfg.Oracle.Clip.SharedLibraryPath,
			ImageModelPath:    cfg.Oracle.Clip.ImageModelPath,
			TextModelPath:     cfg.Oracle.Clip.TextModelPath,
			TokenizerPath:     cfg.Oracle.Clip.TokenizerPath,
			ImageSize:         cfg.Oracle.Clip.ImageSize,
			ContextLength:     cfg.Oracle.Clip.ContextLength,
			EmbeddingDim:      cfg.Oracle.Clip.EmbeddingDim,
		}, cache, log)
		if err != nil {
			zapLog.Fatal("clip model load failed", zap.Error(err))
		}
		defer clip.Close()
		backend = clip
		zapLog.Info("CLIP model loaded",
			zap.String("model", cfg.Oracle.ModelName),
			zap.String("device", cfg.Oracle.Device),
		)
	}

	tracer := tracing.Tracer("challenge-verifier")
	scorer := oracle.Instrument(oracle.WithTimeout(backend, cfg.Oracle.Timeout), cfg.Oracle.Backend, obs, tracer)

	// --- Services ---
	policy := cfg.Policy.Policy()
	engine, err := verify.NewEngine(mapper, catalog, scorer, policy, obs, log)
	if err != nil {
		zapLog.Fatal("verification engine init failed", zap.Error(err))
	}
	previews := preview.NewService(mapper, log)

	limits := cfg.Server.ImageLimits()
	handlers := api.NewHandlers(engine, previews, scorer, limits, log)
	server := api.NewServer(api.ServerOptions{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, handlers, log, tracer)

	zapLog.Info("Verdict policy",
		zap.Float64("passThreshold", policy.PassThreshold),
		zap.Float64("reviewThreshold", policy.ReviewThreshold),
		zap.Float64("margin", policy.Margin),
		zap.Int("maxImageSide", limits.MaxSide),
		zap.Int64("maxImagePixels", limits.MaxPixels),
	)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Challenge verifier stopped gracefully")
}
