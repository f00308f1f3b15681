package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/toricodesthings/doc-classification-service/internal/types"
)

// Results caches successful classification results by image content.
type Results struct {
	store    Store
	ttl      time.Duration
	identity string
}

// NewResults scopes keys by identity (program and script) so swapping the
// classification program does not serve stale results.
func NewResults(store Store, ttl time.Duration, identity string) *Results {
	return &Results{store: store, ttl: ttl, identity: identity}
}

// Key hashes the image bytes together with the identity.
func (r *Results) Key(imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	io.WriteString(h, r.identity)
	h.Write([]byte{0})
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash image: %w", err)
	}
	return "result:" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached result re-labelled with imagePath.
func (r *Results) Get(ctx context.Context, key, imagePath string) (types.ClassificationResult, bool, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return types.ClassificationResult{}, false, nil
	}
	if err != nil {
		return types.ClassificationResult{}, false, err
	}
	var res types.ClassificationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return types.ClassificationResult{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	res.ImagePath = imagePath
	res.OutputFilePath = ""
	return res, true, nil
}

// Put stores successful results only.
func (r *Results) Put(ctx context.Context, key string, res types.ClassificationResult) error {
	if !res.Success {
		return nil
	}
	res.OutputFilePath = ""
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.store.Set(ctx, key, data, r.ttl)
}
