package scan

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/progress"
	"github.com/michaelscutari/treesize/internal/tree"
)

// reduce finalizes e and its subtree in post-order and returns the node.
// It runs on a single goroutine and is the join point for the whole crawl.
func (c *Crawler) reduce(e *Entry) *tree.Node {
	c.join(e)

	node := &tree.Node{Name: e.name, Kind: e.kind}

	if e.kind == entry.KindDir {
		c.stats.Dirs++

		// Sorting reads the children's kinds, so every child must be
		// classified first.
		for _, child := range e.children {
			c.join(child)
		}
		slices.SortFunc(e.children, compareEntries)

		node.Children = make([]*tree.Node, 0, len(e.children))
		for _, child := range e.children {
			node.Children = append(node.Children, c.reduce(child))
		}
		e.size = lo.SumBy(e.children, func(child *Entry) int64 {
			return child.size
		})
	} else {
		c.stats.Files++
	}

	node.Size = e.size

	if e.depth <= c.opts.LogDepth {
		c.report(e, progress.Done)
	}
	return node
}

// join waits for the classification of e exactly once.
func (c *Crawler) join(e *Entry) {
	if e.joined {
		return
	}
	e.joined = true

	if err := e.pending.Wait(); err != nil {
		// The task panicked; whatever it wrote is discarded.
		for _, child := range e.children {
			child.dropped.Store(true)
			c.drain(child)
		}
		c.errs.dropUnder(e.path)
		c.errs.record(e.path, "classify", fmt.Errorf("classification failed: %w", err))
		e.kind = entry.KindFile
		e.size = 0
		e.children = nil
	}
}

// drain waits out the work already submitted below a dropped entry and
// withdraws its progress reports. Tasks that start after the drop return
// immediately, so drain finishes once the in-flight ones do.
func (c *Crawler) drain(e *Entry) {
	e.pending.Wait()
	for _, child := range e.children {
		c.drain(child)
	}
	if c.reporter != nil {
		c.reporter.Remove(e.path)
	}
}

func compareEntries(a, b *Entry) int {
	return entry.Compare(a.kind, a.name, b.kind, b.name)
}
