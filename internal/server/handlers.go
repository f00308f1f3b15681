package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/toricodesthings/doc-classification-service/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := s.metrics.Get()
	status := "healthy"
	code := http.StatusOK

	ratio := s.cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if s.cfg.MaxConcurrentRequests > 0 && active >= int64(float64(s.cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": version,
	})
}

// handleServiceHealth never touches the pipeline.
func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "OCR service is running",
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeErr(w, http.StatusNotFound, "not_found", "Metrics disabled")
		return
	}
	promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	body, err := parseJSON[types.ProcessRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse(sanitizeError(err)))
		return
	}
	if err := s.checkPathLen(body.ImagePath); err != nil {
		writeFailure(w, err)
		return
	}

	req := &types.ClassificationRequest{
		ImagePath:  body.ImagePath,
		BatchMode:  body.BatchProcess,
		SaveOutput: body.SaveToFile == nil || *body.SaveToFile,
		OutputDir:  body.OutputDir,
	}

	timeout := s.cfg.RequestTimeout
	if req.BatchMode {
		timeout = s.cfg.BatchTimeout
	}
	ctx, cancel := withTimeout(r.Context(), timeout)
	defer cancel()

	resp, err := s.proc.Process(ctx, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcessSingle(w http.ResponseWriter, r *http.Request) {
	path, ok := s.formValue(w, r, "imagePath")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.proc.ProcessSingle(ctx, path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SingleResponse(res))
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.formValue(w, r, "directoryPath")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context(), s.cfg.BatchTimeout)
	defer cancel()

	report, err := s.proc.ProcessBatch(ctx, dir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.BatchResponse(report))
}

// formValue reads key from the query string or a form body.
func (s *Server) formValue(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	if s.cfg.MaxJSONBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxJSONBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse(sanitizeError(err)))
		return "", false
	}
	v := r.Form.Get(key)
	if err := s.checkPathLen(v); err != nil {
		writeFailure(w, err)
		return "", false
	}
	return v, true
}

func (s *Server) checkPathLen(p string) error {
	maxLen := s.cfg.MaxPathLen
	if maxLen <= 0 {
		maxLen = 4096
	}
	if len(strings.TrimSpace(p)) > maxLen {
		return types.ValidationError(fmt.Sprintf("path longer than %d bytes", maxLen))
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := writeFailure(w, err)
	log := s.log.Warn
	if e.StatusCode >= http.StatusInternalServerError {
		log = s.log.Error
	}
	log("request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("status", e.StatusCode),
		zap.String("code", e.Code),
		zap.Error(err))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
