// Package selection partitions a crawled tree into upload units no larger
// than a size threshold.
package selection

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/michaelscutari/treesize/internal/queue"
	"github.com/michaelscutari/treesize/internal/tree"
)

// DefaultThreshold is one terabyte.
const DefaultThreshold int64 = 1_000_000_000_000

// ParseThreshold parses a humanized byte size such as "1TB" or "500GiB".
func ParseThreshold(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid threshold %q: must be positive", s)
	}
	return int64(n), nil
}

// Unit is one selected path and its size.
type Unit struct {
	Path string
	Size int64
	Dir  bool
}

// Selector picks upload units.
type Selector struct {
	threshold int64
	logger    *slog.Logger
}

// New creates a selector for threshold bytes.
func New(threshold int64) *Selector {
	return &Selector{threshold: threshold, logger: slog.Default()}
}

// SetLogger sets the logger for oversized-file warnings.
func (s *Selector) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Units returns the largest nodes reachable from root whose size is at most
// the threshold, in tree order. Oversized directories are replaced by their
// children. An oversized file cannot be split and is returned as its own unit.
func (s *Selector) Units(base string, root *tree.Node) []Unit {
	var units []Unit
	var visit func(path string, n *tree.Node)
	visit = func(path string, n *tree.Node) {
		if n.Size <= s.threshold {
			units = append(units, Unit{Path: path, Size: n.Size, Dir: n.IsDir()})
			return
		}
		if !n.IsDir() {
			s.logger.Warn("file exceeds threshold", "path", path,
				"size", humanize.Bytes(uint64(n.Size)), "threshold", humanize.Bytes(uint64(s.threshold)))
			units = append(units, Unit{Path: path, Size: n.Size})
			return
		}
		for _, child := range n.Children {
			visit(filepath.Join(path, child.Name), child)
		}
	}
	visit(base, root)
	return units
}

// Select builds a fresh queue of the units under root.
func (s *Selector) Select(base string, root *tree.Node) *queue.Queue {
	units := s.Units(base, root)
	q := queue.New()
	q.Queued = lo.Map(units, func(u Unit, _ int) string {
		return u.Path
	})

	s.logger.Info("selected upload units",
		"units", len(units),
		"bytes", humanize.Bytes(uint64(lo.SumBy(units, func(u Unit) int64 { return u.Size }))))
	return q
}
