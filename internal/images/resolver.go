// Package images materializes image URL references into repository-backed
// binary nodes, reusing an existing node when one is already stored at the
// deterministic target path.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/smonier/importContentFromJson/internal/report"
	"github.com/smonier/importContentFromJson/internal/repository"
)

// Fetcher retrieves the binary behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (data []byte, mimeType string, err error)
}

// HTTPFetcher fetches directly over HTTP(S) with a response size cap.
// The browser flow routes through the service's /image-proxy endpoint for
// cross-origin reasons; this process has no such restriction.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

const defaultMaxBytes = 64 << 20

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("images: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("images: unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("images: build request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("images: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("images: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	max := f.MaxBytes
	if max <= 0 {
		max = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, "", fmt.Errorf("images: read %s: %w", rawURL, err)
	}
	if int64(len(data)) > max {
		return nil, "", fmt.Errorf("images: %s exceeds %d bytes", rawURL, max)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return data, mime, nil
}

// Result is the outcome of resolving one image reference.
type Result struct {
	UUID     string
	FileName string
	Status   string // report.StatusCreated, StatusExists or StatusFailed
	Err      error
}

// Resolver deduplicates and materializes image references for one import
// run. Target path: {FileBasePath}/{PathSuffix}/{fileName}.
type Resolver struct {
	Repo         repository.Service
	Fetch        Fetcher
	FileBasePath string
	PathSuffix   string
	Log          *zap.Logger
}

func (r *Resolver) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Resolver) uploadPath() string {
	if r.PathSuffix == "" {
		return r.FileBasePath
	}
	return strings.TrimSuffix(r.FileBasePath, "/") + "/" + strings.Trim(r.PathSuffix, "/")
}

// FileName derives the deterministic file name of an image URL: the last
// path segment with query parameters stripped, falling back to a synthetic
// name from the 1-based list position when empty.
func FileName(rawURL string, index int) string {
	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return fmt.Sprintf("image_%d", index)
	}
	return name
}

// urlOf accepts either a bare URL string or a {url: string} wrapper.
func urlOf(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), true
	case map[string]any:
		if s, ok := v["url"].(string); ok {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// ResolveOne materializes one image reference. index is the 1-based position
// inside the owning value list, used only for the synthetic-name fallback.
//
// A Result with StatusFailed carries the cause in Err; ResolveOne itself
// never fails the owning record.
func (r *Resolver) ResolveOne(ctx context.Context, value any, index int) Result {
	u, ok := urlOf(value)
	if !ok || u == "" {
		return Result{
			FileName: fmt.Sprintf("image_%d", index),
			Status:   report.StatusFailed,
			Err:      fmt.Errorf("images: missing url in %v", value),
		}
	}

	fileName := FileName(u, index)
	target := r.uploadPath() + "/" + fileName

	existing, err := r.Repo.CheckImage(ctx, target)
	if err != nil {
		return Result{FileName: fileName, Status: report.StatusFailed, Err: fmt.Errorf("images: check %s: %w", target, err)}
	}
	if existing != nil {
		r.logger().Debug("image exists, reusing node",
			zap.String("path", target), zap.String("uuid", existing.UUID))
		return Result{UUID: existing.UUID, FileName: fileName, Status: report.StatusExists}
	}

	data, mime, err := r.Fetch.Fetch(ctx, u)
	if err != nil {
		return Result{FileName: fileName, Status: report.StatusFailed, Err: err}
	}

	uuid, err := r.Repo.UploadFile(ctx, fileName, r.uploadPath(), mime, data)
	if err != nil {
		return Result{FileName: fileName, Status: report.StatusFailed, Err: fmt.Errorf("images: upload %s: %w", fileName, err)}
	}

	return Result{UUID: uuid, FileName: fileName, Status: report.StatusCreated}
}

// ResolveAll resolves a list of image references with per-element failure
// isolation: one bad URL never aborts its siblings.
func (r *Resolver) ResolveAll(ctx context.Context, values []any) []Result {
	out := make([]Result, 0, len(values))
	for i, v := range values {
		out = append(out, r.ResolveOne(ctx, v, i+1))
	}
	return out
}
