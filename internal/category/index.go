// Package category resolves category names to repository identifiers through
// a lazily built, session-scoped index of the remote category tree.
package category

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/smonier/importContentFromJson/internal/repository"
)

// cacheSize bounds the flattened index. Category trees are small in practice;
// the bound only guards against pathological trees.
const cacheSize = 4096

var whitespace = regexp.MustCompile(`\s+`)

// Normalize converts a display name to its lookup key: lowercase, runs of
// whitespace replaced by a single dash.
func Normalize(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Index is a build-once map from category node name to identifier.
//
// One Index lives per import session and is reset when the user changes
// site/workspace context. The mutex makes the lazy build safe for the
// occasional concurrent trigger; the tree is fetched at most once.
type Index struct {
	repo repository.Service

	mu     sync.Mutex
	cache  *lru.Cache[string, string]
	loaded bool
}

func NewIndex(repo repository.Service) *Index {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(fmt.Sprintf("category: new cache: %v", err))
	}
	return &Index{repo: repo, cache: cache}
}

// Lookup resolves a category name (normalized first) to its identifier,
// building the index on first use.
func (ix *Index) Lookup(ctx context.Context, name string) (string, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.ensureLocked(ctx); err != nil {
		return "", false, err
	}
	uuid, ok := ix.cache.Get(Normalize(name))
	return uuid, ok, nil
}

// Reset discards the cached tree so the next lookup refetches it.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.cache.Purge()
	ix.loaded = false
}

func (ix *Index) ensureLocked(ctx context.Context) error {
	if ix.loaded && ix.cache.Len() > 0 {
		return nil
	}

	tree, err := ix.repo.CategoryTree(ctx)
	if err != nil {
		return fmt.Errorf("category: fetch tree: %w", err)
	}
	flatten(tree, ix.cache)
	ix.loaded = true
	return nil
}

// flatten walks the tree depth-first, registering every node name.
func flatten(nodes []repository.CategoryNode, cache *lru.Cache[string, string]) {
	for _, node := range nodes {
		cache.Add(node.Name, node.UUID)
		if len(node.Children) > 0 {
			flatten(node.Children, cache)
		}
	}
}
