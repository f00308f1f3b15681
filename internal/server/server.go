// Package server exposes the classification pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/doc-classification-service/internal/classifier"
	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/metrics"
)

const version = "1.0.0"

type Server struct {
	cfg        config.Config
	proc       *classifier.Processor
	metrics    *metrics.Metrics
	log        *zap.Logger
	requestSem *semaphore.Weighted
	limiters   *limiterSet
}

func New(cfg config.Config, proc *classifier.Processor, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	maxReq := cfg.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}
	return &Server{
		cfg:        cfg,
		proc:       proc,
		metrics:    m,
		log:        log.Named("http"),
		requestSem: semaphore.NewWeighted(maxReq),
		limiters:   newLimiterSet(cfg.RateLimitEvery, cfg.RateLimitBurst),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withLogging, s.withRecovery)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.With(s.withInternalAuth).Get("/metrics", s.handleMetrics)

	r.Route("/api/ocr", func(r chi.Router) {
		r.Get("/health", s.handleServiceHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.withInternalAuth, s.withRateLimit, s.withConcurrencyLimit)
			r.Post("/process", s.handleProcess)
			r.Post("/process-single", s.handleProcessSingle)
			r.Post("/process-batch", s.handleProcessBatch)
		})
	})

	return r
}

// RunHousekeeping logs runtime stats and drops per-IP limiters every
// CleanupInterval until ctx is done.
func (s *Server) RunHousekeeping(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active := s.metrics.Get()
		dropped := s.limiters.reset()
		s.log.Info("stats",
			zap.Int64("active", active),
			zap.Int64("total", total),
			zap.Int("goroutines", runtime.NumGoroutine()),
			zap.Uint64("mem_mb", m.Alloc/(1<<20)),
			zap.Int("limiters_dropped", dropped))
	}
}
