// Package scan crawls a filesystem subtree into a sized, ordered tree.
//
// Crawling happens in two phases. Building creates one Entry per path and
// submits its classification to a shared worker pool; classifying a
// directory builds its children, which submit their own work, so the whole
// tree is discovered through a single pool. Reduction then walks the entries
// depth-first on the calling goroutine, waits for each classification, sorts
// siblings and sums sizes bottom-up. Reduction is the only code that blocks.
package scan

import (
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/progress"
	"github.com/michaelscutari/treesize/internal/tree"
)

// Reporter receives entry status changes. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Update(path string, depth int, status progress.Status)
	// Remove forgets a path that was reported but will not be in the tree.
	Remove(path string)
}

// Stats summarizes a finished crawl.
type Stats struct {
	Files     int64
	Dirs      int64
	Errors    int64
	TotalSize int64
	StartTime time.Time
	EndTime   time.Time
}

// Result is the outcome of a crawl. Tree is always set.
type Result struct {
	Root   string
	Tree   *tree.Node
	Errors []entry.ScanError
	Stats  Stats
}

// Crawler coordinates one crawl.
type Crawler struct {
	opts     ScanOptions
	fs       FS
	reporter Reporter
	logger   *slog.Logger
	errs     *errorLog

	pool  pond.Pool
	stats Stats
}

// NewCrawler creates a crawler with its own copy of opts.
func NewCrawler(opts ScanOptions) *Crawler {
	opts = opts.WithWorkers(opts.Workers)
	logger := slog.Default()
	return &Crawler{
		opts:   opts,
		fs:     OSFS{},
		logger: logger,
		errs:   &errorLog{logger: logger},
	}
}

// SetFS replaces the filesystem used for classification.
func (c *Crawler) SetFS(fsys FS) {
	c.fs = fsys
}

// SetReporter sets the progress reporter.
func (c *Crawler) SetReporter(r Reporter) {
	c.reporter = r
}

// SetLogger sets the logger for scan errors and debug output.
func (c *Crawler) SetLogger(logger *slog.Logger) {
	c.logger = logger
	c.errs.logger = logger
}

// Run crawls root and returns the reduced tree. Failures on individual
// entries are recorded in Result.Errors; Run itself never fails.
func (c *Crawler) Run(root string) *Result {
	c.stats = Stats{StartTime: time.Now()}
	c.pool = pond.NewPool(c.opts.Workers)
	defer c.pool.StopAndWait()

	c.logger.Debug("crawl started", "root", root, "workers", c.opts.Workers, "max_depth", c.opts.MaxDepth)

	rootEntry := c.build(nil, root, 0)
	node := c.reduce(rootEntry)

	errs := c.errs.snapshot()
	c.stats.Errors = int64(len(errs))
	c.stats.TotalSize = node.Size
	c.stats.EndTime = time.Now()

	c.logger.Debug("crawl finished",
		"root", root,
		"files", c.stats.Files,
		"dirs", c.stats.Dirs,
		"errors", c.stats.Errors,
		"elapsed", c.stats.EndTime.Sub(c.stats.StartTime))

	return &Result{
		Root:   root,
		Tree:   node,
		Errors: errs,
		Stats:  c.stats,
	}
}

func (c *Crawler) report(e *Entry, status progress.Status) {
	if c.reporter != nil && !e.abandoned() {
		c.reporter.Update(e.path, e.depth, status)
	}
}

// record logs a failure on e unless e was dropped.
func (c *Crawler) record(e *Entry, op string, err error) {
	if !e.abandoned() {
		c.errs.record(e.path, op, err)
	}
}
