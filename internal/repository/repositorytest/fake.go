// Package repositorytest provides an in-memory repository.Service fake for
// unit tests: deterministic identifiers, recorded calls, and per-operation
// error injection.
package repositorytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"
)

// Node is one stored node.
type Node struct {
	UUID     string
	Path     string
	Type     string
	Props    []repository.PropertyInput
	Tags     []string
	Cats     []string
	Vanity   map[string]string
	MimeType string
	Binary   []byte
}

// Fake implements repository.Service in memory.
//
// The zero value is not usable; construct with New.
type Fake struct {
	mu   sync.Mutex
	seq  int
	node map[string]*Node

	Tree  []repository.CategoryNode
	Types []schema.ContentType
	Defs  map[string][]schema.PropertyDefinition
	Langs []schema.Language

	// Error injection. A nil entry means the operation succeeds.
	CreateContentErr map[string]error // keyed by node name
	UpdateContentErr error
	AddTagsErr       error
	AddCategoriesErr error
	AddVanityErr     error
	UploadErr        error
	TreeErr          error

	// NotFoundAsError makes CheckPath return repository.ErrNotFound for
	// absent paths instead of a false PathInfo.
	NotFoundAsError bool

	// Calls records every operation in "op arg" form, in order.
	Calls []string
}

func New() *Fake {
	return &Fake{
		node:             map[string]*Node{},
		Defs:             map[string][]schema.PropertyDefinition{},
		CreateContentErr: map[string]error{},
	}
}

var _ repository.Service = (*Fake)(nil)

func (f *Fake) record(op, arg string) { f.Calls = append(f.Calls, op+" "+arg) }

// CallsTo returns the recorded calls for one operation.
func (f *Fake) CallsTo(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op+" ") {
			out = append(out, strings.TrimPrefix(c, op+" "))
		}
	}
	return out
}

// Node returns the stored node at path, or nil.
func (f *Fake) Node(path string) *Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.node[path]
}

// Put stores a node directly, assigning an identifier when missing.
func (f *Fake) Put(n *Node) *Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.UUID == "" {
		n.UUID = f.nextUUID()
	}
	f.node[n.Path] = n
	return n
}

func (f *Fake) nextUUID() string {
	f.seq++
	return fmt.Sprintf("uuid-%d", f.seq)
}

func (f *Fake) byUUID(id string) *Node {
	for _, n := range f.node {
		if n.UUID == id {
			return n
		}
	}
	return nil
}

func (f *Fake) Close() {}

func (f *Fake) CheckPath(ctx context.Context, path string) (repository.PathInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CheckPath", path)

	if n, ok := f.node[path]; ok {
		return repository.PathInfo{Exists: true, UUID: n.UUID}, nil
	}
	if f.NotFoundAsError {
		return repository.PathInfo{}, fmt.Errorf("check %s: %w", path, repository.ErrNotFound)
	}
	return repository.PathInfo{}, nil
}

func (f *Fake) CreatePath(ctx context.Context, parentPath, name, nodeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimSuffix(parentPath, "/") + "/" + name
	f.record("CreatePath", path)
	if n, ok := f.node[path]; ok {
		return n.UUID, nil
	}
	n := &Node{UUID: f.nextUUID(), Path: path, Type: nodeType}
	f.node[path] = n
	return n.UUID, nil
}

func (f *Fake) CreateContent(ctx context.Context, path, name, primaryNodeType string, props []repository.PropertyInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := strings.TrimSuffix(path, "/") + "/" + name
	f.record("CreateContent", full)

	if err := f.CreateContentErr[name]; err != nil {
		return "", err
	}
	if _, ok := f.node[full]; ok {
		return "", fmt.Errorf("create %s: node already exists", full)
	}
	n := &Node{UUID: f.nextUUID(), Path: full, Type: primaryNodeType, Props: props, Vanity: map[string]string{}}
	f.node[full] = n
	return n.UUID, nil
}

func (f *Fake) UpdateContent(ctx context.Context, idOrPath string, props []repository.PropertyInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateContent", idOrPath)

	if f.UpdateContentErr != nil {
		return "", f.UpdateContentErr
	}
	n := f.node[idOrPath]
	if n == nil {
		n = f.byUUID(idOrPath)
	}
	if n == nil {
		return "", fmt.Errorf("update %s: %w", idOrPath, repository.ErrNotFound)
	}
	n.Props = props
	return n.UUID, nil
}

func (f *Fake) ContentTypes(ctx context.Context, siteKey, language string) ([]schema.ContentType, error) {
	f.record("ContentTypes", siteKey)
	return f.Types, nil
}

func (f *Fake) ContentTypeProperties(ctx context.Context, typeName, language string) ([]schema.PropertyDefinition, error) {
	f.record("ContentTypeProperties", typeName)
	return f.Defs[typeName], nil
}

func (f *Fake) CheckImage(ctx context.Context, path string) (*repository.NodeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CheckImage", path)

	if n, ok := f.node[path]; ok {
		name := path[strings.LastIndex(path, "/")+1:]
		return &repository.NodeInfo{UUID: n.UUID, Name: name}, nil
	}
	return nil, nil
}

func (f *Fake) UploadFile(ctx context.Context, name, path, mimeType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := strings.TrimSuffix(path, "/") + "/" + name
	f.record("UploadFile", full)
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	n := &Node{UUID: f.nextUUID(), Path: full, Type: "jnt:file", MimeType: mimeType, Binary: data}
	f.node[full] = n
	return n.UUID, nil
}

func (f *Fake) AddTags(ctx context.Context, id string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddTags", id)

	if f.AddTagsErr != nil {
		return f.AddTagsErr
	}
	if n := f.byUUID(id); n != nil {
		n.Tags = append(n.Tags, tags...)
	}
	return nil
}

func (f *Fake) AddCategories(ctx context.Context, id string, categoryIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddCategories", id)

	if f.AddCategoriesErr != nil {
		return f.AddCategoriesErr
	}
	if n := f.byUUID(id); n != nil {
		n.Cats = append(n.Cats, categoryIDs...)
	}
	return nil
}

func (f *Fake) AddVanityURL(ctx context.Context, id, language, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddVanityURL", id)

	if f.AddVanityErr != nil {
		return f.AddVanityErr
	}
	if n := f.byUUID(id); n != nil {
		if n.Vanity == nil {
			n.Vanity = map[string]string{}
		}
		n.Vanity[language] = url
	}
	return nil
}

func (f *Fake) CategoryTree(ctx context.Context) ([]repository.CategoryNode, error) {
	f.record("CategoryTree", "")
	if f.TreeErr != nil {
		return nil, f.TreeErr
	}
	return f.Tree, nil
}

func (f *Fake) SiteLanguages(ctx context.Context, siteKey string) ([]schema.Language, error) {
	f.record("SiteLanguages", siteKey)
	return f.Langs, nil
}
