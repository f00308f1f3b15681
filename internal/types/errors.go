package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindSizeLimitExceeded ErrorKind = "size_limit_exceeded"
	KindNotADirectory     ErrorKind = "not_a_directory"
	KindEmptyBatch        ErrorKind = "empty_batch"
	KindProcessTimeout    ErrorKind = "process_timeout"
	KindProcessExit       ErrorKind = "process_nonzero_exit"
	KindProcessIO         ErrorKind = "process_io"
	KindOutputParse       ErrorKind = "output_parse"
)

// Error is the single error type produced by the pipeline. ExitCode and
// Stderr are only meaningful for KindProcessExit.
type Error struct {
	Kind     ErrorKind
	Message  string
	Err      error
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func ValidationError(msg string) *Error {
	return NewError(KindValidation, msg, nil)
}

func NotFoundError(path string) *Error {
	return NewError(KindNotFound, "path does not exist: "+path, nil)
}

func UnsupportedFormatError(ext string, supported []string) *Error {
	return NewError(KindUnsupportedFormat,
		fmt.Sprintf("unsupported file format %q, supported formats: %v", ext, supported), nil)
}

func SizeLimitExceededError(sizeBytes int64, maxMB int) *Error {
	return NewError(KindSizeLimitExceeded,
		fmt.Sprintf("file size %.1fMB (%d bytes) exceeds limit of %dMB", float64(sizeBytes)/(1<<20), sizeBytes, maxMB), nil)
}

func NotADirectoryError(path string) *Error {
	return NewError(KindNotADirectory, "path is not a directory: "+path, nil)
}

func EmptyBatchError(dir string) *Error {
	return NewError(KindEmptyBatch, "no supported image files found in directory: "+dir, nil)
}

func ProcessTimeoutError(timeoutDesc string) *Error {
	return NewError(KindProcessTimeout, "classification program timed out after "+timeoutDesc, nil)
}

func ProcessNonZeroExitError(code int, stderr string) *Error {
	return &Error{
		Kind:     KindProcessExit,
		Message:  fmt.Sprintf("classification program exited with code %d: %s", code, stderr),
		ExitCode: code,
		Stderr:   stderr,
	}
}

func ProcessIOError(msg string, err error) *Error {
	return NewError(KindProcessIO, msg, err)
}

func OutputParseError(err error) *Error {
	return NewError(KindOutputParse, "parse failed", err)
}

// KindOf reports the kind of err, or "" when err is not a pipeline *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
