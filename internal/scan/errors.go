package scan

import (
	"cmp"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sasha-s/go-deadlock"

	"github.com/michaelscutari/treesize/internal/entry"
)

// errorLog collects per-entry failures from pool workers and the reducer.
type errorLog struct {
	mu     deadlock.Mutex
	errs   []entry.ScanError
	logger *slog.Logger
}

func (l *errorLog) record(path, op string, err error) {
	l.logger.Warn("scan error", "path", path, "op", op, "err", err)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, entry.ScanError{
		Path:    path,
		Op:      op,
		Message: err.Error(),
	})
}

// dropUnder forgets the errors recorded for path and everything below it.
func (l *errorLog) dropUnder(path string) {
	prefix := path
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = slices.DeleteFunc(l.errs, func(e entry.ScanError) bool {
		return e.Path == path || strings.HasPrefix(e.Path, prefix)
	})
}

// snapshot returns the recorded errors ordered by path.
func (l *errorLog) snapshot() []entry.ScanError {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := slices.Clone(l.errs)
	slices.SortFunc(out, func(a, b entry.ScanError) int {
		if c := cmp.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(a.Op, b.Op)
	})
	return out
}
