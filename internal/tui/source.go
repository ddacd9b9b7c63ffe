package tui

import (
	"cmp"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/pathutil"
	"github.com/michaelscutari/treesize/internal/rollup"
	"github.com/michaelscutari/treesize/internal/tree"
)

// Source is what the browser reads from.
type Source interface {
	Meta() (*entry.ScanMeta, error)
	Children(path string, sort SortColumn, limit int) ([]db.DisplayEntry, error)
	Rollup(path string) (*entry.Rollup, error)
}

// DBSource browses a snapshot database.
type DBSource struct {
	DB *sql.DB
}

func (s DBSource) Meta() (*entry.ScanMeta, error) {
	return db.GetScanMeta(s.DB)
}

func (s DBSource) Children(path string, sort SortColumn, limit int) ([]db.DisplayEntry, error) {
	return db.LoadChildren(s.DB, path, sort.String(), limit)
}

func (s DBSource) Rollup(path string) (*entry.Rollup, error) {
	return db.GetRollup(s.DB, path)
}

// TreeSource browses a tree file held in memory.
type TreeSource struct {
	base    string
	root    *tree.Node
	nodes   map[string]*tree.Node
	rollups rollup.Table
	modTime time.Time
}

// NewTreeSource indexes root, whose filesystem path is base.
func NewTreeSource(base string, root *tree.Node, rollups rollup.Table, modTime time.Time) *TreeSource {
	base = pathutil.Normalize(base)
	s := &TreeSource{
		base:    base,
		root:    root,
		nodes:   make(map[string]*tree.Node),
		rollups: rollups,
		modTime: modTime,
	}
	tree.Walk(base, root, func(path string, n *tree.Node, depth int) error {
		if n.IsDir() {
			s.nodes[path] = n
		}
		return nil
	})
	return s
}

func (s *TreeSource) Meta() (*entry.ScanMeta, error) {
	meta := &entry.ScanMeta{
		RootPath:  s.base,
		StartTime: s.modTime,
		EndTime:   s.modTime,
		TotalSize: s.root.Size,
		MaxDepth:  -1,
	}
	if r, ok := s.rollups.Get(s.base); ok {
		meta.FileCount = r.TotalFiles
		meta.DirCount = r.TotalDirs + 1
	} else {
		meta.FileCount = 1
	}
	return meta, nil
}

func (s *TreeSource) Children(path string, sort SortColumn, limit int) ([]db.DisplayEntry, error) {
	path = pathutil.Normalize(path)
	n, ok := s.nodes[path]
	if !ok {
		return nil, fmt.Errorf("parent not found: %s", path)
	}

	entries := make([]db.DisplayEntry, 0, len(n.Children))
	for _, child := range n.Children {
		e := db.DisplayEntry{
			Path: filepath.Join(path, child.Name),
			Name: child.Name,
			Kind: child.Kind,
			Size: child.Size,
		}
		if child.IsDir() {
			r, _ := s.rollups.Get(e.Path)
			e.TotalFiles = r.TotalFiles
			e.TotalDirs = r.TotalDirs
		} else {
			e.TotalFiles = 1
		}
		entries = append(entries, e)
	}

	// Children are already in tree order.
	switch sort {
	case SortBySize:
		slices.SortStableFunc(entries, func(a, b db.DisplayEntry) int {
			return cmp.Compare(b.Size, a.Size)
		})
	case SortByFiles:
		slices.SortStableFunc(entries, func(a, b db.DisplayEntry) int {
			return cmp.Compare(b.TotalFiles, a.TotalFiles)
		})
	case SortByName:
		slices.SortStableFunc(entries, func(a, b db.DisplayEntry) int {
			return strings.Compare(a.Name, b.Name)
		})
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *TreeSource) Rollup(path string) (*entry.Rollup, error) {
	r, ok := s.rollups.Get(pathutil.Normalize(path))
	if !ok {
		return nil, nil
	}
	return &r, nil
}
