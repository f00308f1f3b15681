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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/toricodesthings/doc-classification-service/internal/cache"
	"github.com/toricodesthings/doc-classification-service/internal/classifier"
	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/logger"
	"github.com/toricodesthings/doc-classification-service/internal/metrics"
	"github.com/toricodesthings/doc-classification-service/internal/runner"
	"github.com/toricodesthings/doc-classification-service/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.LoggerLevel(), cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	m := metrics.New()
	opts := []classifier.Option{classifier.WithMetrics(m), classifier.WithLogger(log)}

	// Redis is optional, continue without it
	var redisClient *cache.RedisClient
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", zap.Error(err))
		} else {
			log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
			redisClient = rc
			identity := cfg.ProgramPath + "\x00" + cfg.ScriptPath
			opts = append(opts, classifier.WithCache(cache.NewResults(rc, cfg.CacheTTL, identity)))
		}
	}

	proc := classifier.New(cfg, runner.New(cfg, log), opts...)
	srv := server.New(cfg, proc, m, log)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.InternalSharedSecret == "" {
		log.Warn("INTERNAL_SHARED_SECRET not set, API is unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.RunHousekeeping(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			zap.String("address", httpSrv.Addr),
			zap.String("program", cfg.ProgramPath),
			zap.String("script", cfg.ScriptPath),
			zap.Int64("max_concurrent", cfg.MaxConcurrentRequests),
			zap.Int64("max_processes", cfg.MaxConcurrentProcesses))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info("Server exited")
	return nil
}
