package image

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toricodesthings/doc-classification-service/internal/config"
	"github.com/toricodesthings/doc-classification-service/internal/types"
)

// Validator checks requests and files against the configured allow-list and
// size limit. It only reads the filesystem.
type Validator struct {
	formats  map[string]bool // matched case-insensitively, no leading dot
	list     []string
	maxBytes int64
	maxMB    int
}

func NewValidator(cfg config.Config) *Validator {
	v := &Validator{
		formats:  make(map[string]bool, len(cfg.SupportedFormats)),
		maxBytes: cfg.MaxFileBytes(),
		maxMB:    cfg.MaxFileSizeMB,
	}
	for _, f := range cfg.SupportedFormats {
		f = strings.TrimPrefix(strings.ToLower(f), ".")
		if f != "" && !v.formats[f] {
			v.formats[f] = true
			v.list = append(v.list, f)
		}
	}
	return v
}

func extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Supported reports whether path carries an allowed image extension.
func (v *Validator) Supported(path string) bool {
	return v.formats[extension(path)]
}

// ValidateRequest checks shape and filesystem preconditions. It reports
// whether the request targets a directory.
func (v *Validator) ValidateRequest(req *types.ClassificationRequest) (isDir bool, err error) {
	if req == nil {
		return false, types.ValidationError("request is required")
	}
	path := strings.TrimSpace(req.ImagePath)
	if path == "" {
		return false, types.ValidationError("imagePath is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, statError(path, err)
	}

	switch {
	case info.IsDir():
		if !req.BatchMode {
			return true, types.ValidationError("path is a directory, set batchProcess=true to process it as a batch")
		}
		return true, nil
	case info.Mode().IsRegular():
		return false, v.ValidateFile(path)
	default:
		return false, types.ValidationError("path is neither a regular file nor a directory: " + path)
	}
}

// ValidateFile checks existence, extension and size of a single image.
func (v *Validator) ValidateFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return types.ValidationError("imagePath is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return statError(path, err)
	}
	if !info.Mode().IsRegular() {
		return types.ValidationError("path is not a regular file: " + path)
	}
	if !v.Supported(path) {
		return types.UnsupportedFormatError(extension(path), v.list)
	}
	if v.maxBytes > 0 && info.Size() > v.maxBytes {
		return types.SizeLimitExceededError(info.Size(), v.maxMB)
	}
	return nil
}

// ListImages returns the supported regular files directly inside dir, in
// directory listing order. Symlinks are followed.
func (v *Validator) ListImages(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, types.ValidationError("directoryPath is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, statError(dir, err)
	}
	if !info.IsDir() {
		return nil, types.NotADirectoryError(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.NewError(types.KindValidation, "read directory", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		fi, err := os.Stat(full)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if v.Supported(full) {
			files = append(files, full)
		}
	}
	if len(files) == 0 {
		return nil, types.EmptyBatchError(dir)
	}
	return files, nil
}

func statError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return types.NotFoundError(path)
	}
	return types.NewError(types.KindValidation, "cannot access path "+path, err)
}
