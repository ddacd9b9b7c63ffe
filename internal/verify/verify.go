// Package verify recomputes the size of a subtree with an independent
// parallel walk, to detect drift against a finished crawl.
package verify

import (
	"context"
	"io/fs"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Totals is the outcome of a verification walk.
type Totals struct {
	Size   int64
	Files  int64
	Errors int64
}

// Options configures Total.
type Options struct {
	// Workers is the walk concurrency; <= 0 uses GOMAXPROCS.
	Workers int

	// Exclude reports paths to skip, matching the crawl's exclusions.
	Exclude func(path string) bool
}

// Total sums the sizes of regular files under root. Symbolic links are
// followed like the crawler's stat does, except that fastwalk breaks link
// cycles that the crawler only bounds by depth.
func Total(ctx context.Context, root string, opts Options) (Totals, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Totals{Errors: 1}, nil
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			return Totals{Size: info.Size(), Files: 1}, nil
		}
		return Totals{Files: 1}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	conf := &fastwalk.Config{
		Follow:     true,
		NumWorkers: workers,
	}

	var size, files, errs atomic.Int64
	err = fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs.Add(1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path != root && opts.Exclude != nil && opts.Exclude(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		fi, err := fastwalk.StatDirEntry(path, d)
		if err != nil {
			errs.Add(1)
			files.Add(1)
			return nil
		}
		if fi.IsDir() {
			// A followed link; fastwalk descends into it itself.
			return nil
		}
		files.Add(1)
		if fi.Mode().IsRegular() {
			size.Add(fi.Size())
		}
		return nil
	})

	return Totals{Size: size.Load(), Files: files.Load(), Errors: errs.Load()}, err
}
