// Package classifier drives the per-image pipeline (validate, run, extract,
// map) for single files and directories.
package classifier

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/doc-classification-service/internal/cache"
	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/extractor"
	"github.com/toricodesthings/doc-classification-service/internal/format"
	"github.com/toricodesthings/doc-classification-service/internal/image"
	"github.com/toricodesthings/doc-classification-service/internal/metrics"
	"github.com/toricodesthings/doc-classification-service/internal/output"
	"github.com/toricodesthings/doc-classification-service/internal/runner"
	"github.com/toricodesthings/doc-classification-service/internal/types"
)

const canceledMsg = "canceled"

type Processor struct {
	cfg       config.Config
	validator *image.Validator
	runner    runner.Runner
	procSem   *semaphore.Weighted
	writer    *output.Writer
	cache     *cache.Results
	metrics   *metrics.Metrics
	log       *zap.Logger
}

type Option func(*Processor)

func WithCache(c *cache.Results) Option {
	return func(p *Processor) { p.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.log = l }
}

func WithOutputWriter(w *output.Writer) Option {
	return func(p *Processor) { p.writer = w }
}

func New(cfg config.Config, r runner.Runner, opts ...Option) *Processor {
	slots := cfg.MaxConcurrentProcesses
	if slots <= 0 {
		slots = 1
	}
	p := &Processor{
		cfg:       cfg,
		validator: image.NewValidator(cfg),
		runner:    r,
		procSem:   semaphore.NewWeighted(slots),
		writer:    output.NewWriter(),
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.Named("classifier")
	return p
}

// Process dispatches a request to the single-file or batch pipeline based
// on what ImagePath is on disk. A returned error means nothing was spawned.
func (p *Processor) Process(ctx context.Context, req *types.ClassificationRequest) (types.ClassificationResponse, error) {
	isDir, err := p.validator.ValidateRequest(req)
	if err != nil {
		return types.ErrorResponse(err.Error()), err
	}

	saveDir := ""
	if req.SaveOutput {
		saveDir = strings.TrimSpace(req.OutputDir)
		if saveDir == "" {
			saveDir = p.cfg.DefaultOutputDir
		}
	}

	path := strings.TrimSpace(req.ImagePath)
	if isDir {
		report, err := p.batch(ctx, path, saveDir)
		if err != nil {
			return types.ErrorResponse(err.Error()), err
		}
		return types.BatchResponse(report), nil
	}
	return types.SingleResponse(p.pipeline(ctx, path, saveTarget{dir: saveDir, name: output.FileName(path)})), nil
}

// ProcessSingle validates imagePath and classifies it. Validation failures
// are returned as errors; everything after that is folded into the result.
func (p *Processor) ProcessSingle(ctx context.Context, imagePath string) (types.ClassificationResult, error) {
	imagePath = strings.TrimSpace(imagePath)
	if err := p.validator.ValidateFile(imagePath); err != nil {
		return types.Failed(imagePath, err.Error()), err
	}
	return p.pipeline(ctx, imagePath, saveTarget{}), nil
}

// ProcessBatch classifies every supported image in dir. Errors are only
// returned when the directory itself is unusable.
func (p *Processor) ProcessBatch(ctx context.Context, dir string) (types.BatchReport, error) {
	return p.batch(ctx, strings.TrimSpace(dir), "")
}

func (p *Processor) batch(ctx context.Context, dir, saveDir string) (types.BatchReport, error) {
	files, err := p.validator.ListImages(dir)
	if err != nil {
		return types.BatchReport{}, err
	}

	p.log.Info("batch started", zap.String("dir", dir), zap.Int("files", len(files)), zap.Int("workers", p.workers()))
	results := p.runAll(ctx, files, saveDir)
	report := types.NewBatchReport(results)
	p.log.Info("batch finished",
		zap.String("dir", dir),
		zap.Int("total", report.TotalProcessed),
		zap.Int("success", report.SuccessCount),
		zap.Int("failure", report.FailureCount))
	return report, nil
}

func (p *Processor) workers() int {
	if p.cfg.BatchWorkers < 1 {
		return 1
	}
	return p.cfg.BatchWorkers
}

// saveTarget is where a result is written; an empty dir means not saved.
type saveTarget struct {
	dir  string
	name string
}

// runAll keeps results in input order whether it runs sequentially or with
// a bounded pool.
func (p *Processor) runAll(ctx context.Context, files []string, saveDir string) []types.ClassificationResult {
	results := make([]types.ClassificationResult, len(files))
	targets := make([]saveTarget, len(files))
	if saveDir != "" {
		for i, name := range output.FileNames(files) {
			targets[i] = saveTarget{dir: saveDir, name: name}
		}
	}

	n := p.workers()
	if n == 1 {
		for i, f := range files {
			results[i] = p.fileResult(ctx, f, targets[i])
		}
		return results
	}

	// Plain Group: a failing file must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(n)
	for i, f := range files {
		g.Go(func() error {
			results[i] = p.fileResult(ctx, f, targets[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fileResult runs the whole per-file pipeline and never fails out of band.
func (p *Processor) fileResult(ctx context.Context, path string, save saveTarget) types.ClassificationResult {
	if ctx.Err() != nil {
		p.metrics.ObserveResult(false)
		return types.Failed(path, canceledMsg)
	}
	if err := p.validator.ValidateFile(path); err != nil {
		p.log.Warn("file rejected", zap.String("path", path), zap.Error(err))
		p.metrics.ObserveResult(false)
		return types.Failed(path, err.Error())
	}
	return p.pipeline(ctx, path, save)
}

// pipeline expects path to be validated already.
func (p *Processor) pipeline(ctx context.Context, path string, save saveTarget) types.ClassificationResult {
	res, err := p.classify(ctx, path)
	if err != nil {
		p.log.Warn("classification failed", zap.String("path", path), zap.Error(err))
		res = types.Failed(path, err.Error())
	}
	p.metrics.ObserveResult(res.Success)

	if save.dir != "" {
		out, err := p.writer.SaveAs(save.dir, save.name, res)
		if err != nil {
			p.log.Warn("save result failed", zap.String("path", path), zap.Error(err))
		} else {
			res.OutputFilePath = out
		}
	}
	return res
}

// classify returns an error only for process-level failures; payload
// problems come back as failure results from format.ToResult.
func (p *Processor) classify(ctx context.Context, path string) (types.ClassificationResult, error) {
	key := p.cacheKey(path)
	if key != "" {
		cached, ok, err := p.cache.Get(ctx, key, path)
		switch {
		case err != nil:
			p.log.Warn("cache get failed", zap.Error(err))
		case ok:
			p.metrics.CacheHit()
			return cached, nil
		}
	}

	if err := p.procSem.Acquire(ctx, 1); err != nil {
		return types.ClassificationResult{}, types.ProcessIOError("wait for process slot", err)
	}
	exec, err := p.runner.Run(ctx, path)
	p.procSem.Release(1)

	p.metrics.ObserveProcess(outcome(err), exec.Duration)
	if err != nil {
		return types.ClassificationResult{}, err
	}

	payload := extractor.ExtractJSON(exec.Stdout)
	if p.cfg.DebugMode {
		p.log.Debug("extracted payload", zap.String("path", path), zap.String("json", payload))
	}
	res := format.ToResult(payload, path)

	if key != "" && res.Success {
		if err := p.cache.Put(ctx, key, res); err != nil {
			p.log.Warn("cache put failed", zap.Error(err))
		}
	}
	return res, nil
}

func (p *Processor) cacheKey(path string) string {
	if p.cache == nil {
		return ""
	}
	key, err := p.cache.Key(path)
	if err != nil {
		p.log.Warn("cache key failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return key
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var e *types.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case types.KindProcessTimeout:
			return metrics.OutcomeTimeout
		case types.KindProcessExit:
			return metrics.OutcomeExit
		}
	}
	return metrics.OutcomeIO
}
