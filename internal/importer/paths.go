package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/smonier/importContentFromJson/internal/repository"
)

// Folder node types used when creating missing path segments.
const (
	FolderTypeContent = "jnt:contentFolder"
	FolderTypeFile    = "jnt:folder"
)

// ContentBasePath is the fixed content root of a site.
func ContentBasePath(siteKey string) string {
	return "/sites/" + siteKey + "/contents"
}

// FileBasePath is the fixed file-storage root of a site.
func FileBasePath(siteKey string) string {
	return "/sites/" + siteKey + "/files"
}

// JoinSuffix appends a slash-separated suffix to a base path.
func JoinSuffix(base, suffix string) string {
	suffix = strings.Trim(suffix, "/")
	if suffix == "" {
		return base
	}
	return base + "/" + suffix
}

// EnsurePath walks the suffix segments under base from root toward leaf,
// creating each missing folder before descending into it. The walk is
// deliberately not batched: a segment must exist before its children can be
// addressed. Returns the full path.
func EnsurePath(ctx context.Context, repo repository.Service, base, suffix, nodeType string) (string, error) {
	current := base
	for _, seg := range strings.Split(strings.Trim(suffix, "/"), "/") {
		if seg == "" {
			continue
		}
		candidate := current + "/" + seg
		info, err := repository.NodeExists(ctx, repo, candidate)
		if err != nil {
			return "", fmt.Errorf("importer: check path %s: %w", candidate, err)
		}
		if !info.Exists {
			if _, err := repo.CreatePath(ctx, current, seg, nodeType); err != nil {
				return "", fmt.Errorf("importer: create path %s: %w", candidate, err)
			}
		}
		current = candidate
	}
	return current, nil
}
