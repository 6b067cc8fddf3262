// Package httpapi provides the repository backend that talks to a remote
// content API over JSON/HTTP. It is the backend used against a live CMS;
// cfg.BaseURL points at the API root and cfg.BearerToken, when set, is sent
// on every request.
package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"
)

func init() {
	repository.Register("httpapi", func(ctx context.Context, cfg repository.Config) (repository.Service, error) {
		return New(cfg)
	})
}

// Client implements repository.Service against a remote JSON API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

var _ repository.Service = (*Client)(nil)

// New builds a client for cfg.BaseURL. It does not probe the remote; the
// first call surfaces connectivity problems.
func New(cfg repository.Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpapi: missing base_url")
	}
	return &Client{
		base:  strings.TrimSuffix(cfg.BaseURL, "/"),
		token: cfg.BearerToken,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Close() { c.http.CloseIdleConnections() }

// do sends one request and decodes a JSON response into out when out is
// non-nil. A 404 maps to repository.ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		body = strings.NewReader(oj.JSON(in))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, repository.ErrNotFound)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("httpapi: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw))
	}
	if out == nil {
		return nil
	}
	if err := oj.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("httpapi: %s %s: decode response: %w", method, path, err)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

type uuidResponse struct {
	UUID string `json:"uuid"`
}

func (c *Client) CheckPath(ctx context.Context, path string) (repository.PathInfo, error) {
	var info repository.PathInfo
	err := c.do(ctx, http.MethodGet, "/api/nodes", url.Values{"path": {path}}, nil, &info)
	if err != nil {
		return repository.PathInfo{}, err
	}
	return info, nil
}

func (c *Client) CreatePath(ctx context.Context, parentPath, name, nodeType string) (string, error) {
	in := map[string]string{"parentPath": parentPath, "name": name, "nodeType": nodeType}
	var out uuidResponse
	if err := c.do(ctx, http.MethodPost, "/api/folders", nil, in, &out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (c *Client) CreateContent(ctx context.Context, path, name, primaryNodeType string, props []repository.PropertyInput) (string, error) {
	in := map[string]any{
		"path":       path,
		"name":       name,
		"nodeType":   primaryNodeType,
		"properties": props,
	}
	var out uuidResponse
	if err := c.do(ctx, http.MethodPost, "/api/contents", nil, in, &out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (c *Client) UpdateContent(ctx context.Context, idOrPath string, props []repository.PropertyInput) (string, error) {
	in := map[string]any{"properties": props}
	var out uuidResponse
	err := c.do(ctx, http.MethodPut, "/api/contents", url.Values{"id": {idOrPath}}, in, &out)
	if err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (c *Client) ContentTypes(ctx context.Context, siteKey, language string) ([]schema.ContentType, error) {
	var out []schema.ContentType
	q := url.Values{"language": {language}}
	err := c.do(ctx, http.MethodGet, "/api/sites/"+url.PathEscape(siteKey)+"/content-types", q, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ContentTypeProperties(ctx context.Context, typeName, language string) ([]schema.PropertyDefinition, error) {
	var out []schema.PropertyDefinition
	q := url.Values{"language": {language}}
	err := c.do(ctx, http.MethodGet, "/api/content-types/"+url.PathEscape(typeName)+"/properties", q, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CheckImage(ctx context.Context, path string) (*repository.NodeInfo, error) {
	var info repository.NodeInfo
	err := c.do(ctx, http.MethodGet, "/api/files", url.Values{"path": {path}}, nil, &info)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}

func (c *Client) UploadFile(ctx context.Context, name, path, mimeType string, data []byte) (string, error) {
	q := url.Values{"path": {path}, "name": {name}}
	u := c.base + "/api/files?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("httpapi: upload %s: %w", name, err)
	}
	req.Header.Set("Content-Type", mimeType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpapi: upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("httpapi: upload %s: read body: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("httpapi: upload %s: status %d: %s", name, resp.StatusCode, truncate(raw))
	}
	var out uuidResponse
	if err := oj.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("httpapi: upload %s: decode response: %w", name, err)
	}
	return out.UUID, nil
}

func (c *Client) AddTags(ctx context.Context, id string, tags []string) error {
	in := map[string][]string{"tags": tags}
	return c.do(ctx, http.MethodPost, "/api/nodes/"+url.PathEscape(id)+"/tags", nil, in, nil)
}

func (c *Client) AddCategories(ctx context.Context, id string, categoryIDs []string) error {
	in := map[string][]string{"categories": categoryIDs}
	return c.do(ctx, http.MethodPost, "/api/nodes/"+url.PathEscape(id)+"/categories", nil, in, nil)
}

func (c *Client) AddVanityURL(ctx context.Context, id, language, vanity string) error {
	in := map[string]string{"language": language, "url": vanity}
	return c.do(ctx, http.MethodPost, "/api/nodes/"+url.PathEscape(id)+"/vanity-urls", nil, in, nil)
}

func (c *Client) CategoryTree(ctx context.Context) ([]repository.CategoryNode, error) {
	var out []repository.CategoryNode
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SiteLanguages(ctx context.Context, siteKey string) ([]schema.Language, error) {
	var out []schema.Language
	err := c.do(ctx, http.MethodGet, "/api/sites/"+url.PathEscape(siteKey)+"/languages", nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
