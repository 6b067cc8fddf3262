// Package repository defines the backend-agnostic content repository service
// the import pipeline talks to, plus the factory used to construct a
// configured backend.
//
// Backends register themselves from an init() function (see repository/all)
// and implement the semantics in their own idiomatic way: the HTTP backend
// forwards to a remote content API, the SQL backends keep a local node store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smonier/importContentFromJson/internal/schema"
)

// ErrNotFound reports that a node does not exist at the requested path or
// identifier. Callers performing existence checks treat it as "does not
// exist" rather than as a failure.
var ErrNotFound = errors.New("repository: node not found")

// PathInfo is the result of an existence query.
type PathInfo struct {
	Exists bool   `json:"exists"`
	UUID   string `json:"uuid,omitempty"`
}

// NodeInfo identifies an existing node.
type NodeInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// PropertyInput is one property item of a create/update mutation.
// Exactly one of Value and Values is set, per the property's cardinality.
// Language is set only for internationalized properties.
type PropertyInput struct {
	Name     string `json:"name"`
	Value    any    `json:"value,omitempty"`
	Values   []any  `json:"values,omitempty"`
	Language string `json:"language,omitempty"`
}

// CategoryNode is one node of the hierarchical category tree.
type CategoryNode struct {
	Name     string         `json:"name"`
	UUID     string         `json:"uuid"`
	Children []CategoryNode `json:"children,omitempty"`
}

// Service is the content repository contract the import pipeline consumes.
//
// All calls take a context and are expected to be used sequentially from a
// single import loop; backends do not need internal batching.
type Service interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// CheckPath reports whether a node exists at path, with its identifier
	// when found. Backends may return ErrNotFound instead of a false
	// PathInfo; use NodeExists to normalize.
	CheckPath(ctx context.Context, path string) (PathInfo, error)

	// CreatePath creates one folder-like node under parentPath.
	CreatePath(ctx context.Context, parentPath, name, nodeType string) (string, error)

	// CreateContent creates a content node with the given properties and
	// returns its identifier.
	CreateContent(ctx context.Context, path, name, primaryNodeType string, props []PropertyInput) (string, error)

	// UpdateContent replaces properties on an existing node addressed by
	// identifier or path.
	UpdateContent(ctx context.Context, idOrPath string, props []PropertyInput) (string, error)

	// ContentTypes lists the importable content types of a site.
	ContentTypes(ctx context.Context, siteKey, language string) ([]schema.ContentType, error)

	// ContentTypeProperties fetches the property definitions of a type.
	ContentTypeProperties(ctx context.Context, typeName, language string) ([]schema.PropertyDefinition, error)

	// CheckImage looks up an existing file node; a nil NodeInfo with a nil
	// error means the file is absent.
	CheckImage(ctx context.Context, path string) (*NodeInfo, error)

	// UploadFile stores a binary under path/name and returns the new
	// node's identifier.
	UploadFile(ctx context.Context, name, path, mimeType string, data []byte) (string, error)

	AddTags(ctx context.Context, id string, tags []string) error
	AddCategories(ctx context.Context, id string, categoryIDs []string) error
	AddVanityURL(ctx context.Context, id, language, url string) error

	// CategoryTree fetches the hierarchical category nodes.
	CategoryTree(ctx context.Context) ([]CategoryNode, error)

	// SiteLanguages lists the languages configured on a site.
	SiteLanguages(ctx context.Context, siteKey string) ([]schema.Language, error)
}

// Seeder is implemented by backends that can be pre-populated with schema
// metadata (the embedded SQL backends). The CLI uses it to load content type
// definitions from a local file before a run.
type Seeder interface {
	SeedContentType(ctx context.Context, siteKey string, t schema.ContentType, defs []schema.PropertyDefinition) error
	SeedLanguages(ctx context.Context, siteKey string, langs []schema.Language) error
}

// NodeExists normalizes an existence check: a backend ErrNotFound becomes
// {Exists: false} instead of an error.
func NodeExists(ctx context.Context, s Service, path string) (PathInfo, error) {
	info, err := s.CheckPath(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PathInfo{}, nil
		}
		return PathInfo{}, err
	}
	return info, nil
}

// Config selects and configures a backend.
type Config struct {
	// Kind matches a registered backend kind ("httpapi", "sqlite",
	// "postgres", "mssql").
	Kind string `json:"kind" validate:"required"`
	// DSN is the connection string for SQL backends.
	DSN string `json:"dsn,omitempty"`
	// BaseURL is the remote API root for the httpapi backend.
	BaseURL string `json:"base_url,omitempty"`
	// BearerToken authenticates httpapi calls when set.
	BearerToken string `json:"bearer_token,omitempty"`
}

type factory func(ctx context.Context, cfg Config) (Service, error)

var (
	facMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() function.
// Registering the same kind twice panics to fail fast on ambiguous wiring.
func Register(kind string, f factory) {
	facMu.Lock()
	defer facMu.Unlock()

	if kind == "" {
		panic("repository: Register called with empty kind")
	}
	if f == nil {
		panic("repository: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("repository: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Service using the registered backend factory.
func New(ctx context.Context, cfg Config) (Service, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("repository: missing kind")
	}

	facMu.RLock()
	f := factories[cfg.Kind]
	facMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("repository: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
