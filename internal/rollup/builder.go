package rollup

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/tree"
)

// Table maps directory paths to their rollups.
type Table map[string]entry.Rollup

// Get returns the rollup for path.
func (t Table) Get(path string) (entry.Rollup, bool) {
	r, ok := t[path]
	return r, ok
}

// Sorted returns every rollup ordered by path.
func (t Table) Sorted() []entry.Rollup {
	out := lo.Values(t)
	slices.SortFunc(out, func(a, b entry.Rollup) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// ProgressFunc reports rollup progress.
type ProgressFunc func(done int64)

// Builder computes directory rollups bottom-up.
type Builder struct {
	progress ProgressFunc
	every    int64
	done     int64
}

// NewBuilder creates a new rollup builder.
func NewBuilder() *Builder {
	return &Builder{every: 2048}
}

// SetProgressFunc sets a callback invoked every few thousand directories.
func (b *Builder) SetProgressFunc(f ProgressFunc) {
	b.progress = f
}

// Build computes rollups for every directory in root. base is the
// filesystem path of root; rollup paths are base joined with node names.
func (b *Builder) Build(ctx context.Context, base string, root *tree.Node) (Table, error) {
	b.done = 0
	table := make(Table)
	if _, err := b.visit(ctx, base, root, table); err != nil {
		return nil, err
	}
	if b.progress != nil {
		b.progress(b.done)
	}
	return table, nil
}

// visit returns the rollup of n, counting n itself when it is a file.
func (b *Builder) visit(ctx context.Context, path string, n *tree.Node, table Table) (entry.Rollup, error) {
	if !n.IsDir() {
		return entry.Rollup{Path: path, TotalSize: n.Size, TotalFiles: 1}, nil
	}

	select {
	case <-ctx.Done():
		return entry.Rollup{}, ctx.Err()
	default:
	}

	rollup := entry.Rollup{Path: path, TotalSize: n.Size}
	for _, child := range n.Children {
		sub, err := b.visit(ctx, filepath.Join(path, child.Name), child, table)
		if err != nil {
			return entry.Rollup{}, err
		}
		rollup.TotalFiles += sub.TotalFiles
		if child.IsDir() {
			rollup.TotalDirs += sub.TotalDirs + 1 // +1 for the child dir itself
		}
	}
	table[path] = rollup

	b.done++
	if b.progress != nil && b.done%b.every == 0 {
		b.progress(b.done)
	}
	return rollup, nil
}
