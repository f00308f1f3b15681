// Package runner launches the external classification program, one process
// per image, and reports what it printed and how it exited.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/types"
)

// Pipes still held open by orphaned grandchildren are abandoned after this.
const waitDelay = 2 * time.Second

const stderrTail = 2048

// Runner is the capability the pipeline needs from process execution.
type Runner interface {
	Run(ctx context.Context, imagePath string) (types.ProcessExecutionResult, error)
}

// Exec runs "<Program> <abs Script> <abs image>" as a child process.
type Exec struct {
	Program        string
	Script         string
	Timeout        time.Duration
	WorkDir        string
	MaxOutputBytes int64
	Debug          bool
	Log            *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Exec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exec{
		Program:        cfg.ProgramPath,
		Script:         cfg.ScriptPath,
		Timeout:        cfg.ProcessTimeout,
		WorkDir:        cfg.WorkDir,
		MaxOutputBytes: cfg.MaxOutputBytes,
		Debug:          cfg.DebugMode,
		Log:            log.Named("runner"),
	}
}

// Args returns the argument vector with script and image made absolute.
func (e *Exec) Args(imagePath string) ([]string, error) {
	script, err := filepath.Abs(e.Script)
	if err != nil {
		return nil, fmt.Errorf("resolve script path: %w", err)
	}
	image, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, fmt.Errorf("resolve image path: %w", err)
	}
	return []string{e.Program, script, image}, nil
}

// Run blocks until the child exits or Timeout elapses. On every return path
// the child has been reaped; on timeout it is killed first.
func (e *Exec) Run(ctx context.Context, imagePath string) (types.ProcessExecutionResult, error) {
	res := types.ProcessExecutionResult{ExitCode: -1}

	args, err := e.Args(imagePath)
	if err != nil {
		return res, types.ProcessIOError("build command", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	stdout := &cappedBuffer{max: e.MaxOutputBytes}
	stderr := &cappedBuffer{max: e.MaxOutputBytes}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8", "PYTHONUTF8=1")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	killGroupOnCancel(cmd)

	if e.Debug {
		e.Log.Debug("exec", zap.Strings("argv", args), zap.String("dir", cmd.Dir))
	}

	start := time.Now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if e.Debug {
		e.Log.Debug("exec finished",
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("duration", res.Duration),
			zap.Int64("stdout_dropped", stdout.dropped),
			zap.String("stdout", res.Stdout),
			zap.String("stderr", res.Stderr))
	}

	if runErr == nil {
		return res, nil
	}
	// Exited cleanly but something it spawned kept the pipes open.
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		return res, nil
	}

	switch {
	case ctx.Err() != nil:
		return res, types.ProcessIOError("classification program canceled", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		return res, types.ProcessTimeoutError(e.Timeout.String())
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return res, types.ProcessNonZeroExitError(exitErr.ExitCode(), tail(res.Stderr, stderrTail))
	}
	return res, types.ProcessIOError("run classification program", runErr)
}

// cappedBuffer keeps the first max bytes and silently discards the rest, so
// the child never blocks on a full pipe.
type cappedBuffer struct {
	buf     bytes.Buffer
	max     int64
	dropped int64
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - int64(b.buf.Len())
	switch {
	case b.max <= 0:
		b.buf.Write(p)
	case room <= 0:
		b.dropped += int64(len(p))
	case int64(len(p)) > room:
		b.buf.Write(p[:room])
		b.dropped += int64(len(p)) - room
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
