package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBatchReport(t *testing.T) {
	results := []ClassificationResult{
		{ImagePath: "a.jpg", Success: true, TextLines: []string{"x"}},
		Failed("b.jpg", "boom"),
		{ImagePath: "c.jpg", Success: true, TextLines: []string{}},
	}

	r := NewBatchReport(results)

	assert.Equal(t, 3, r.TotalProcessed)
	assert.Equal(t, 2, r.SuccessCount)
	assert.Equal(t, 1, r.FailureCount)
	assert.Equal(t, r.TotalProcessed, r.SuccessCount+r.FailureCount)
	assert.Equal(t, "b.jpg", r.Results[1].ImagePath)
}

func TestSingleResponse(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		resp := SingleResponse(ClassificationResult{ImagePath: "a.jpg", DocumentType: "idcard", Success: true})
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.SuccessCount)
		assert.Equal(t, 0, resp.FailureCount)
		assert.Empty(t, resp.ErrorMessage)
	})

	t.Run("failure carries message", func(t *testing.T) {
		resp := SingleResponse(Failed("a.jpg", "low confidence"))
		assert.False(t, resp.Success)
		assert.Equal(t, "low confidence", resp.ErrorMessage)
		assert.Equal(t, 1, resp.FailureCount)
		assert.NotNil(t, resp.Result)
	})
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", ProcessTimeoutError("1s"))
	assert.Equal(t, KindProcessTimeout, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	exit := ProcessNonZeroExitError(3, "traceback")
	assert.Equal(t, 3, exit.ExitCode)
	assert.Contains(t, exit.Error(), "traceback")

	parse := OutputParseError(errors.New("unexpected end of JSON input"))
	assert.Equal(t, "parse failed: unexpected end of JSON input", parse.Error())
}

func TestSizeLimitExceededError(t *testing.T) {
	err := SizeLimitExceededError(10<<20+512<<10, 10)

	assert.Equal(t, KindSizeLimitExceeded, err.Kind)
	assert.Equal(t, "file size 10.5MB (11010048 bytes) exceeds limit of 10MB", err.Error())
}
