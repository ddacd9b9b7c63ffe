// Package snapshot persists finished crawls as SQLite databases.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/rollup"
	"github.com/michaelscutari/treesize/internal/scan"

	_ "modernc.org/sqlite"
)

const (
	filePrefix = "treesize-"
	fileSuffix = ".db"
	latestName = "latest.db"
	lockName   = ".treesize.lock"
)

// StageFunc is called when the save stage changes.
type StageFunc func(stage string)

// ProgressFunc receives ingestion progress while the tree is written.
type ProgressFunc func(p db.Progress)

const progressInterval = 500 * time.Millisecond

// Manager writes snapshots into one directory and prunes old ones.
type Manager struct {
	outputDir    string
	retention    int
	lock         *flock.Flock
	stageFunc    StageFunc
	progressFunc ProgressFunc
	indexMode    string
	sqliteTmpDir string
	logger       *slog.Logger
	now          func() time.Time
}

// NewManager creates a new snapshot manager. retention <= 0 keeps every
// snapshot.
func NewManager(outputDir string, retention int) *Manager {
	return &Manager{
		outputDir: outputDir,
		retention: retention,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// SetStageFunc sets a callback for stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetProgressFunc sets a callback polled during ingestion and called once
// more when it finishes.
func (m *Manager) SetProgressFunc(f ProgressFunc) {
	m.progressFunc = f
}

// SetIndexMode sets the index build mode: memory|disk|skip.
func (m *Manager) SetIndexMode(mode string) error {
	if err := CheckIndexMode(mode); err != nil {
		return err
	}
	m.indexMode = mode
	return nil
}

// CheckIndexMode validates an index build mode.
func CheckIndexMode(mode string) error {
	switch mode {
	case "memory", "disk", "skip":
		return nil
	}
	return fmt.Errorf("invalid index mode %q (expected memory|disk|skip)", mode)
}

// SetSQLiteTmpDir sets the temp directory for SQLite during index build.
func (m *Manager) SetSQLiteTmpDir(dir string) {
	m.sqliteTmpDir = dir
}

// SetLogger sets the logger for non-fatal failures.
func (m *Manager) SetLogger(logger *slog.Logger) {
	m.logger = logger
}

func (m *Manager) stage(name string) {
	if m.stageFunc != nil {
		m.stageFunc(name)
	}
}

// Save writes res into a new snapshot and returns its path.
func (m *Manager) Save(ctx context.Context, res *scan.Result, opts scan.ScanOptions) (string, error) {
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := m.acquireLock(); err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer m.releaseLock()

	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".treesize-temp-%d.db", time.Now().UnixNano()))
	if err := m.write(ctx, tempPath, res, opts); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	finalName := filePrefix + m.now().Format("20060102-150405") + fileSuffix
	finalPath := filepath.Join(m.outputDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	// Update latest.db symlink atomically via temp symlink + rename
	latestPath := filepath.Join(m.outputDir, latestName)
	tempLink := filepath.Join(m.outputDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(finalName, tempLink); err == nil {
		if err := os.Rename(tempLink, latestPath); err != nil {
			os.Remove(tempLink)
			m.logger.Warn("failed to update latest.db symlink", "err", err)
		}
	} else {
		m.logger.Warn("failed to create latest.db symlink", "err", err)
	}

	if err := m.pruneOldSnapshots(); err != nil {
		m.logger.Warn("failed to prune old snapshots", "err", err)
	}

	return finalPath, nil
}

func (m *Manager) write(ctx context.Context, path string, res *scan.Result, opts scan.ScanOptions) error {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	m.stage("rollups")
	rollups, err := rollup.NewBuilder().Build(ctx, res.Root, res.Tree)
	if err != nil {
		return fmt.Errorf("failed to build rollups: %w", err)
	}

	m.stage("ingest")
	w := db.NewWriter(database, db.DefaultBatchSize)
	w.SetLogger(m.logger)
	stop := m.watch(w)
	err = w.WriteTree(ctx, res.Root, res.Tree, rollups)
	stop()
	if err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if err := w.WriteErrors(res.Errors); err != nil {
		return err
	}
	err = w.WriteMeta(entry.ScanMeta{
		RootPath:   res.Root,
		StartTime:  res.Stats.StartTime,
		EndTime:    res.Stats.EndTime,
		TotalSize:  res.Stats.TotalSize,
		FileCount:  res.Stats.Files,
		DirCount:   res.Stats.Dirs,
		ErrorCount: res.Stats.Errors,
		MaxDepth:   opts.MaxDepth,
		Workers:    opts.Workers,
	})
	if err != nil {
		return err
	}

	if m.indexMode == "" {
		m.indexMode = "memory"
	}
	if m.indexMode != "skip" {
		m.stage("indexes")
		if err := db.ApplyIndexPragmas(database, m.indexMode == "disk", m.sqliteTmpDir); err != nil {
			return fmt.Errorf("failed to apply index pragmas: %w", err)
		}
		if err := db.BuildIndexes(database); err != nil {
			return fmt.Errorf("failed to build indexes: %w", err)
		}
	}

	m.stage("finalize")
	if err := db.Finalize(database); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	return database.Close()
}

// watch polls w for progress until the returned stop func is called. stop
// reports the final counts.
func (m *Manager) watch(w *db.Writer) (stop func()) {
	if m.progressFunc == nil {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.progressFunc(w.Progress())
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		m.progressFunc(w.Progress())
	}
}

func (m *Manager) acquireLock() error {
	m.lock = flock.New(filepath.Join(m.outputDir, lockName))
	locked, err := m.lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("another snapshot is being written to %s", m.outputDir)
	}
	return nil
}

func (m *Manager) releaseLock() {
	if m.lock != nil {
		m.lock.Unlock()
		m.lock = nil
	}
}

func (m *Manager) pruneOldSnapshots() error {
	if m.retention <= 0 {
		return nil
	}

	snapshots, err := m.ListSnapshots()
	if err != nil {
		return err
	}

	for len(snapshots) > m.retention {
		if err := os.Remove(snapshots[0]); err != nil {
			return fmt.Errorf("failed to remove %s: %w", snapshots[0], err)
		}
		snapshots = snapshots[1:]
	}

	return nil
}

// GetLatest returns the path to the latest snapshot.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.outputDir, latestName)
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err != nil {
		return "", fmt.Errorf("no latest snapshot found: %w", err)
	}
	return resolved, nil
}

// ListSnapshots returns all snapshots, oldest first.
func (m *Manager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			snapshots = append(snapshots, filepath.Join(m.outputDir, e.Name()))
		}
	}

	// Names embed the timestamp, so lexical order is chronological.
	sort.Strings(snapshots)
	return snapshots, nil
}

// Open opens a snapshot read-only. path may be a snapshot file or a
// snapshot directory, in which case its latest snapshot is used.
func Open(path string) (*sql.DB, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		latest, err := NewManager(path, 0).GetLatest()
		if err != nil {
			return nil, err
		}
		path = latest
	}

	database, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	if err := db.ApplyReadPragmas(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
