// Package output persists classification results as JSON files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toricodesthings/doc-classification-service/internal/types"
)

const (
	fileSuffix      = "_classification_result.json"
	timestampLayout = "2006-01-02 15:04:05"
)

type record struct {
	Timestamp  string                     `json:"timestamp"`
	InputImage string                     `json:"input_image"`
	Result     types.ClassificationResult `json:"result"`
}

type Writer struct {
	now func() time.Time
}

func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// FileName is "<image base name>_classification_result.json".
func FileName(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + fileSuffix
}

// FileNames returns one distinct result file name per image, index-aligned
// with imagePaths. Images sharing a base name ("card.jpg", "card.png") keep
// their extension in the name; any remaining clash gets a numeric suffix.
func FileNames(imagePaths []string) []string {
	counts := make(map[string]int, len(imagePaths))
	for _, p := range imagePaths {
		counts[FileName(p)]++
	}

	names := make([]string, len(imagePaths))
	taken := make(map[string]bool, len(imagePaths))
	for i, p := range imagePaths {
		name := FileName(p)
		if counts[name] > 1 {
			base := filepath.Base(p)
			ext := strings.TrimPrefix(filepath.Ext(base), ".")
			name = strings.TrimSuffix(base, filepath.Ext(base)) + "_" + ext + fileSuffix
		}
		stem := strings.TrimSuffix(name, fileSuffix)
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d%s", stem, n, fileSuffix)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// Save writes res into dir under FileName(res.ImagePath).
func (w *Writer) Save(dir string, res types.ClassificationResult) (string, error) {
	return w.SaveAs(dir, FileName(res.ImagePath), res)
}

// SaveAs writes res into dir/name, creating dir if needed, and returns the
// file path. The file is replaced atomically.
func (w *Writer) SaveAs(dir, name string, res types.ClassificationResult) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("output dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(record{
		Timestamp:  w.now().Format(timestampLayout),
		InputImage: res.ImagePath,
		Result:     res,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp.Name(), 0o644)
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write result: %w", werr)
	}
	return path, nil
}
