package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Normalize returns a canonical filesystem path string.
// It removes trailing slashes, collapses "." and "..", and
// preserves relative paths when provided.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// Rel returns path relative to root using forward slashes, as object stores
// expect. It fails when path is not root or below it.
func Rel(root, path string) (string, error) {
	rel, err := filepath.Rel(Normalize(root), Normalize(path))
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not under %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}

// JoinURL appends a slash-separated relative path to a bucket URL.
// "." refers to the bucket prefix itself.
func JoinURL(base, rel string) string {
	base = strings.TrimRight(base, "/")
	if rel == "" || rel == "." {
		return base
	}
	return base + "/" + strings.TrimLeft(rel, "/")
}
