package scan

import (
	"path/filepath"
	"sync/atomic"
	"unicode/utf8"

	"github.com/alitto/pond/v2"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/progress"
)

// Entry is one path discovered by the crawl.
//
// kind, size and children are written once, by the entry's own
// classification task, and read by the reducer only after pending has
// completed. joined is touched only by the reducer.
type Entry struct {
	path   string
	depth  int
	name   string
	parent *Entry

	kind     entry.Kind
	size     int64
	children []*Entry

	pending pond.Task
	joined  bool

	// dropped is set by the reducer when this entry's task panicked. Work
	// still running below it stops reporting and recording errors.
	dropped atomic.Bool
}

// abandoned reports whether e or any ancestor was dropped.
func (e *Entry) abandoned() bool {
	for p := e; p != nil; p = p.parent {
		if p.dropped.Load() {
			return true
		}
	}
	return false
}

// build creates the entry for path and submits its classification. It never
// waits for the submitted work.
func (c *Crawler) build(parent *Entry, path string, depth int) *Entry {
	e := &Entry{
		path:   path,
		depth:  depth,
		name:   filepath.Base(path),
		parent: parent,
		kind:   entry.KindUnknown,
	}
	c.report(e, progress.Queued)
	e.pending = c.pool.Submit(func() {
		c.classify(e)
	})
	return e
}

// classify resolves the kind of e. For a directory below the truncation
// depth it builds every child before returning, so a classified directory
// always has its children attached with their work already submitted.
func (c *Crawler) classify(e *Entry) {
	if e.abandoned() {
		return
	}
	c.report(e, progress.Working)

	info, err := c.fs.Stat(e.path)
	if err != nil {
		// Vanished or inaccessible since it was listed.
		e.kind = entry.KindFile
		c.record(e, "stat", err)
		return
	}

	e.kind = entry.KindFromMode(info.Mode())
	if e.kind == entry.KindFile {
		if info.Mode().IsRegular() {
			e.size = info.Size()
		}
		return
	}

	if c.opts.truncates(e.depth) {
		return
	}

	names, err := c.fs.ReadDirNames(e.path)
	if err != nil {
		c.record(e, "readdir", err)
	}

	e.children = make([]*Entry, 0, len(names))
	for _, name := range names {
		if e.abandoned() {
			return
		}
		childPath := filepath.Join(e.path, name)
		if c.opts.ShouldExclude(childPath) {
			c.logger.Debug("excluded", "path", childPath)
			continue
		}
		if !utf8.ValidString(name) {
			c.logger.Warn("file name is not valid UTF-8; the tree stores it with replacement characters",
				"path", childPath)
		}
		e.children = append(e.children, c.build(e, childPath, e.depth+1))
	}
}
