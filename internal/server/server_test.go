package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/doc-classification-service/internal/classifier"
	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/metrics"
	"github.com/toricodesthings/doc-classification-service/internal/types"
)

type stubRunner struct {
	calls int
	run   func(path string) (types.ProcessExecutionResult, error)
}

func (s *stubRunner) Run(_ context.Context, imagePath string) (types.ProcessExecutionResult, error) {
	s.calls++
	return s.run(imagePath)
}

func idcardRunner() *stubRunner {
	return &stubRunner{run: func(string) (types.ProcessExecutionResult, error) {
		return types.ProcessExecutionResult{Stdout: "init\n{\"document_type\":\"idcard\",\"rec_texts\":[\"A\"]}\n"}, nil
	}}
}

func testConfig() config.Config {
	return config.Config{
		MaxJSONBodyBytes:       64 << 10,
		MaxPathLen:             4096,
		MaxConcurrentRequests:  4,
		MaxConcurrentProcesses: 1,
		BatchWorkers:           1,
		RateLimitBurst:         100,
		HealthDegradeRatio:     0.9,
		SupportedFormats:       []string{"jpg", "png"},
		MaxFileSizeMB:          1,
		DefaultOutputDir:       "output",
	}
}

func newTestServer(cfg config.Config, r *stubRunner) *Server {
	m := metrics.New()
	proc := classifier.New(cfg, r, classifier.WithMetrics(m))
	return New(cfg, proc, m, nil)
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o644))
	return p
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) types.ClassificationResponse {
	t.Helper()
	var resp types.ClassificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postForm(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	r := idcardRunner()
	h := newTestServer(testConfig(), r).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ocr/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OCR service is running")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Zero(t, r.calls)
}

func TestProcessSingle(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, dir, "card.jpg")
	pdf := writeImage(t, dir, "doc.pdf")

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "success", path: img, status: http.StatusOK},
		{name: "blank path", path: "", status: http.StatusBadRequest},
		{name: "missing file", path: filepath.Join(dir, "nope.jpg"), status: http.StatusNotFound},
		{name: "unsupported format", path: pdf, status: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := idcardRunner()
			h := newTestServer(testConfig(), r).Handler()

			rec := postForm(h, "/api/ocr/process-single", url.Values{"imagePath": {tt.path}})

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			if tt.status == http.StatusOK {
				assert.True(t, resp.Success)
				require.NotNil(t, resp.Result)
				assert.Equal(t, "idcard", resp.Result.DocumentType)
				assert.Equal(t, 1, r.calls)
			} else {
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.ErrorMessage)
				assert.Zero(t, r.calls)
			}
		})
	}
}

func TestProcessSingle_QueryParameter(t *testing.T) {
	img := writeImage(t, t.TempDir(), "card.png")
	h := newTestServer(testConfig(), idcardRunner()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/ocr/process-single?imagePath="+url.QueryEscape(img), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)
}

func TestProcessSingle_ProcessFailureIsOK(t *testing.T) {
	img := writeImage(t, t.TempDir(), "card.jpg")
	r := &stubRunner{run: func(string) (types.ProcessExecutionResult, error) {
		return types.ProcessExecutionResult{TimedOut: true}, types.ProcessTimeoutError("1s")
	}}
	h := newTestServer(testConfig(), r).Handler()

	rec := postForm(h, "/api/ocr/process-single", url.Values{"imagePath": {img}})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "timed out")
	assert.Equal(t, 1, resp.FailureCount)
}

func TestProcessBatch(t *testing.T) {
	t.Run("counts", func(t *testing.T) {
		dir := t.TempDir()
		writeImage(t, dir, "a.jpg")
		writeImage(t, dir, "b.png")
		writeImage(t, dir, "c.txt")
		r := idcardRunner()
		h := newTestServer(testConfig(), r).Handler()

		rec := postForm(h, "/api/ocr/process-batch", url.Values{"directoryPath": {dir}})

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decode(t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, 2, resp.TotalProcessed)
		assert.Equal(t, 2, resp.SuccessCount)
		assert.Len(t, resp.Results, 2)
		assert.Equal(t, 2, r.calls)
	})

	t.Run("empty batch", func(t *testing.T) {
		dir := t.TempDir()
		writeImage(t, dir, "c.txt")
		r := idcardRunner()
		h := newTestServer(testConfig(), r).Handler()

		rec := postForm(h, "/api/ocr/process-batch", url.Values{"directoryPath": {dir}})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "EMPTY_BATCH", rec.Header().Get("X-Error-Code"))
		assert.Zero(t, r.calls)
	})

	t.Run("not a directory", func(t *testing.T) {
		img := writeImage(t, t.TempDir(), "a.jpg")
		h := newTestServer(testConfig(), idcardRunner()).Handler()

		rec := postForm(h, "/api/ocr/process-batch", url.Values{"directoryPath": {img}})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProcess(t *testing.T) {
	t.Run("saves by default", func(t *testing.T) {
		img := writeImage(t, t.TempDir(), "card.jpg")
		out := t.TempDir()
		h := newTestServer(testConfig(), idcardRunner()).Handler()

		body, _ := json.Marshal(map[string]any{"imagePath": img, "outputDir": out})
		rec := postJSON(h, "/api/ocr/process", string(body))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode(t, rec)
		require.NotNil(t, resp.Result)
		assert.Equal(t, filepath.Join(out, "card_classification_result.json"), resp.Result.OutputFilePath)
		assert.FileExists(t, resp.Result.OutputFilePath)
	})

	t.Run("saveToFile false", func(t *testing.T) {
		img := writeImage(t, t.TempDir(), "card.jpg")
		out := t.TempDir()
		h := newTestServer(testConfig(), idcardRunner()).Handler()

		body, _ := json.Marshal(map[string]any{"imagePath": img, "outputDir": out, "saveToFile": false})
		rec := postJSON(h, "/api/ocr/process", string(body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode(t, rec).Result.OutputFilePath)
		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("directory requires batchProcess", func(t *testing.T) {
		dir := t.TempDir()
		writeImage(t, dir, "a.jpg")
		r := idcardRunner()
		h := newTestServer(testConfig(), r).Handler()

		body, _ := json.Marshal(map[string]any{"imagePath": dir})
		rec := postJSON(h, "/api/ocr/process", string(body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, r.calls)
	})

	t.Run("unknown field", func(t *testing.T) {
		h := newTestServer(testConfig(), idcardRunner()).Handler()

		rec := postJSON(h, "/api/ocr/process", `{"imagePath":"/x.jpg","bogus":1}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("path too long", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxPathLen = 8
		h := newTestServer(cfg, idcardRunner()).Handler()

		rec := postJSON(h, "/api/ocr/process", `{"imagePath":"/a/very/long/path.jpg"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(testConfig(), idcardRunner()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ocr/process", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInternalAuth(t *testing.T) {
	cfg := testConfig()
	cfg.InternalSharedSecret = strings.Repeat("s", 32)
	img := writeImage(t, t.TempDir(), "card.jpg")
	h := newTestServer(cfg, idcardRunner()).Handler()

	rec := postForm(h, "/api/ocr/process-single", url.Values{"imagePath": {img}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/ocr/process-single?imagePath="+url.QueryEscape(img), nil)
	req.Header.Set("X-Internal-Auth", cfg.InternalSharedSecret)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ocr/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitBurst = 1
	cfg.RateLimitEvery = 1<<63 - 1
	img := writeImage(t, t.TempDir(), "card.jpg")
	h := newTestServer(cfg, idcardRunner()).Handler()

	first := postForm(h, "/api/ocr/process-single", url.Values{"imagePath": {img}})
	second := postForm(h, "/api/ocr/process-single", url.Values{"imagePath": {img}})

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestRecovery(t *testing.T) {
	img := writeImage(t, t.TempDir(), "card.jpg")
	r := &stubRunner{run: func(string) (types.ProcessExecutionResult, error) {
		panic("boom")
	}}
	h := newTestServer(testConfig(), r).Handler()

	rec := postForm(h, "/api/ocr/process-single", url.Values{"imagePath": {img}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(testConfig(), idcardRunner()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docclass_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/health"`)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{types.ValidationError("bad"), http.StatusBadRequest},
		{types.NotADirectoryError("/x"), http.StatusBadRequest},
		{types.NotFoundError("/x"), http.StatusNotFound},
		{types.SizeLimitExceededError(20 << 20, 10), http.StatusRequestEntityTooLarge},
		{types.UnsupportedFormatError("gif", []string{"jpg"}), http.StatusUnsupportedMediaType},
		{types.EmptyBatchError("/x"), http.StatusUnprocessableEntity},
		{types.ProcessIOError("spawn", os.ErrPermission), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, MapError(tt.err).StatusCode, tt.err.Error())
	}
	assert.Equal(t, "internal server error", MapError(types.ProcessIOError("spawn", os.ErrPermission)).Message)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", getClientIP(req))
}
