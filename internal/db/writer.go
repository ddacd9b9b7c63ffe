package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/rollup"
	"github.com/michaelscutari/treesize/internal/tree"
)

const insertDirSQL = `INSERT OR REPLACE INTO dirs (id, path, name, parent_id, depth, position) VALUES (?, ?, ?, ?, ?, ?)`
const insertEntrySQL = `INSERT INTO entries (parent_id, name, kind, size, position) VALUES (?, ?, ?, ?, ?)`
const insertRollupSQL = `INSERT OR REPLACE INTO rollups (dir_id, total_size, total_files, total_dirs) VALUES (?, ?, ?, ?)`
const insertErrorSQL = `INSERT INTO scan_errors (path, op, message) VALUES (?, ?, ?)`
const insertMetaSQL = `
INSERT OR REPLACE INTO scan_meta (id, root_path, start_time, end_time, total_size, file_count, dir_count, error_count, max_depth, workers)
VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 10000

const maxErrorsSampled = 1000

type dirRow struct {
	id       int64
	path     string
	name     string
	parentID int64
	depth    int
	position int
}

type entryRow struct {
	parentID int64
	name     string
	kind     entry.Kind
	size     int64
	position int
}

type rollupRow struct {
	dirID int64
	entry.Rollup
}

// Writer ingests a reduced tree into a snapshot database in batched
// transactions.
type Writer struct {
	db        *sql.DB
	batchSize int
	logger    *slog.Logger

	nextDirID   int64
	dirBatch    []dirRow
	entryBatch  []entryRow
	rollupBatch []rollupRow

	// Progress tracking (atomic)
	fileCount int64
	dirCount  int64
}

// Progress holds ingestion progress.
type Progress struct {
	Files int64
	Dirs  int64
}

// NewWriter creates a writer. batchSize <= 0 means DefaultBatchSize.
func NewWriter(db *sql.DB, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{
		db:          db,
		batchSize:   batchSize,
		logger:      slog.Default(),
		dirBatch:    make([]dirRow, 0, batchSize),
		entryBatch:  make([]entryRow, 0, batchSize),
		rollupBatch: make([]rollupRow, 0, batchSize),
	}
}

// SetLogger sets the logger for flush diagnostics.
func (w *Writer) SetLogger(logger *slog.Logger) {
	w.logger = logger
}

// WriteTree stores root, whose filesystem path is base, together with the
// rollups of its directories. A file root is stored as an entry without a
// parent directory.
func (w *Writer) WriteTree(ctx context.Context, base string, root *tree.Node, rollups rollup.Table) error {
	if err := w.addNode(ctx, base, root, 0, 0, 0, rollups); err != nil {
		return err
	}
	return w.flush()
}

func (w *Writer) addNode(ctx context.Context, path string, n *tree.Node, parentID int64, depth, position int, rollups rollup.Table) error {
	if !n.IsDir() {
		atomic.AddInt64(&w.fileCount, 1)
		w.entryBatch = append(w.entryBatch, entryRow{
			parentID: parentID,
			name:     n.Name,
			kind:     n.Kind,
			size:     n.Size,
			position: position,
		})
		if len(w.entryBatch) >= w.batchSize {
			return w.flushEntries()
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	w.nextDirID++
	id := w.nextDirID
	atomic.AddInt64(&w.dirCount, 1)

	w.dirBatch = append(w.dirBatch, dirRow{
		id:       id,
		path:     path,
		name:     n.Name,
		parentID: parentID,
		depth:    depth,
		position: position,
	})
	if len(w.dirBatch) >= w.batchSize {
		if err := w.flushDirs(); err != nil {
			return err
		}
	}

	if r, ok := rollups.Get(path); ok {
		w.rollupBatch = append(w.rollupBatch, rollupRow{dirID: id, Rollup: r})
		if len(w.rollupBatch) >= w.batchSize {
			if err := w.flushRollups(); err != nil {
				return err
			}
		}
	}

	for i, child := range n.Children {
		if err := w.addNode(ctx, filepath.Join(path, child.Name), child, id, depth+1, i, rollups); err != nil {
			return err
		}
	}
	return nil
}

// WriteErrors stores up to the first thousand scan errors.
func (w *Writer) WriteErrors(errs []entry.ScanError) error {
	if len(errs) > maxErrorsSampled {
		w.logger.Debug("sampling scan errors", "total", len(errs), "kept", maxErrorsSampled)
		errs = errs[:maxErrorsSampled]
	}
	if len(errs) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertErrorSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare error statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range errs {
		if _, err := stmt.Exec(e.Path, e.Op, e.Message); err != nil {
			return fmt.Errorf("failed to insert error for %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transaction: %w", err)
	}
	return nil
}

// WriteMeta stores the scan metadata row.
func (w *Writer) WriteMeta(m entry.ScanMeta) error {
	var end int64
	if !m.EndTime.IsZero() {
		end = m.EndTime.Unix()
	}
	_, err := w.db.Exec(insertMetaSQL,
		m.RootPath, m.StartTime.Unix(), end,
		m.TotalSize, m.FileCount, m.DirCount, m.ErrorCount,
		m.MaxDepth, m.Workers,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan meta: %w", err)
	}
	return nil
}

// Progress returns ingestion progress (safe for concurrent access).
func (w *Writer) Progress() Progress {
	return Progress{
		Files: atomic.LoadInt64(&w.fileCount),
		Dirs:  atomic.LoadInt64(&w.dirCount),
	}
}

func (w *Writer) flush() error {
	if err := w.flushDirs(); err != nil {
		return err
	}
	if err := w.flushEntries(); err != nil {
		return err
	}
	return w.flushRollups()
}

// inTx runs fn with query prepared inside a single transaction.
func (w *Writer) inTx(query string, fn func(*sql.Stmt) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (w *Writer) flushDirs() error {
	if len(w.dirBatch) == 0 {
		return nil
	}
	err := w.inTx(insertDirSQL, func(stmt *sql.Stmt) error {
		for _, d := range w.dirBatch {
			if _, err := stmt.Exec(d.id, d.path, d.name, d.parentID, d.depth, d.position); err != nil {
				return fmt.Errorf("failed to insert dir %q: %w", d.path, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.logger.Debug("flushed dirs", "rows", len(w.dirBatch))
	w.dirBatch = w.dirBatch[:0]
	return nil
}

func (w *Writer) flushEntries() error {
	if len(w.entryBatch) == 0 {
		return nil
	}
	err := w.inTx(insertEntrySQL, func(stmt *sql.Stmt) error {
		for _, e := range w.entryBatch {
			if _, err := stmt.Exec(e.parentID, e.name, e.kind, e.size, e.position); err != nil {
				return fmt.Errorf("failed to insert entry %q: %w", e.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.logger.Debug("flushed entries", "rows", len(w.entryBatch))
	w.entryBatch = w.entryBatch[:0]
	return nil
}

func (w *Writer) flushRollups() error {
	if len(w.rollupBatch) == 0 {
		return nil
	}
	err := w.inTx(insertRollupSQL, func(stmt *sql.Stmt) error {
		for _, r := range w.rollupBatch {
			if _, err := stmt.Exec(r.dirID, r.TotalSize, r.TotalFiles, r.TotalDirs); err != nil {
				return fmt.Errorf("failed to insert rollup %d: %w", r.dirID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.rollupBatch = w.rollupBatch[:0]
	return nil
}
