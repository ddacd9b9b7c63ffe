package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/michaelscutari/treesize/internal/db"
	"github.com/michaelscutari/treesize/internal/scan"
)

func crawlSample(t *testing.T) (*scan.Result, scan.ScanOptions) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "more.txt"), []byte("world!"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	opts := scan.DefaultOptions().WithWorkers(2)
	return scan.NewCrawler(opts).Run(root), opts
}

func TestManagerSaveCreatesLatestAndRetention(t *testing.T) {
	res, opts := crawlSample(t)

	outDir := t.TempDir()
	mgr := NewManager(outDir, 1)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return clock }

	ctx := context.Background()
	firstDB, err := mgr.Save(ctx, res, opts)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if filepath.Base(firstDB) != "treesize-20240501-120000.db" {
		t.Fatalf("unexpected snapshot name %s", firstDB)
	}

	latest, err := mgr.GetLatest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	firstResolved, err := filepath.EvalSymlinks(firstDB)
	if err != nil {
		t.Fatalf("resolve first db: %v", err)
	}
	if latest != firstResolved {
		t.Fatalf("latest does not point to first db: %s", latest)
	}

	clock = clock.Add(time.Second)
	secondDB, err := mgr.Save(ctx, res, opts)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if _, err := os.Stat(secondDB); err != nil {
		t.Fatalf("second db missing: %v", err)
	}
	if _, err := os.Stat(firstDB); err == nil {
		t.Fatalf("expected first db to be pruned")
	}

	snapshots, err := mgr.ListSnapshots()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0] != secondDB {
		t.Fatalf("unexpected snapshots: %v", snapshots)
	}
}

func TestOpenReadsSavedSnapshot(t *testing.T) {
	res, opts := crawlSample(t)

	outDir := t.TempDir()
	if _, err := NewManager(outDir, 0).Save(context.Background(), res, opts); err != nil {
		t.Fatalf("save: %v", err)
	}

	database, err := Open(outDir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()

	meta, err := db.GetScanMeta(database)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.RootPath != res.Root || meta.TotalSize != 11 || meta.FileCount != 2 || meta.DirCount != 2 || meta.Workers != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	r, err := db.GetRollup(database, res.Root)
	if err != nil || r == nil {
		t.Fatalf("rollup: %v", err)
	}
	if r.TotalSize != 11 || r.TotalFiles != 2 || r.TotalDirs != 1 {
		t.Fatalf("unexpected rollup: %+v", r)
	}

	children, err := db.LoadChildren(database, res.Root, "tree", 0)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 2 || children[0].Name != "sub" || children[1].Name != "file.txt" {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestManagerSaveFailsWhileLocked(t *testing.T) {
	res, opts := crawlSample(t)
	outDir := t.TempDir()

	held := flock.New(filepath.Join(outDir, lockName))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("hold lock: %v", err)
	}
	defer held.Unlock()

	if _, err := NewManager(outDir, 0).Save(context.Background(), res, opts); err == nil {
		t.Fatalf("expected save to fail while the directory is locked")
	}
}

func TestSaveReportsIngestProgressAndSkipsIndexes(t *testing.T) {
	res, opts := crawlSample(t)
	outDir := t.TempDir()

	mgr := NewManager(outDir, 0)
	if err := mgr.SetIndexMode("fast"); err == nil {
		t.Fatalf("expected invalid index mode to be rejected")
	}
	if err := mgr.SetIndexMode("skip"); err != nil {
		t.Fatalf("index mode: %v", err)
	}
	mgr.SetSQLiteTmpDir(filepath.Join(outDir, "tmp"))

	var stages []string
	var last db.Progress
	mgr.SetStageFunc(func(s string) { stages = append(stages, s) })
	mgr.SetProgressFunc(func(p db.Progress) { last = p })

	path, err := mgr.Save(context.Background(), res, opts)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if last.Files != 2 || last.Dirs != 2 {
		t.Fatalf("final progress = %+v", last)
	}
	for _, s := range stages {
		if s == "indexes" {
			t.Fatalf("indexes built despite skip mode: %v", stages)
		}
	}

	database, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()
	children, err := db.LoadChildren(database, res.Root, "name", 0)
	if err != nil || len(children) != 2 {
		t.Fatalf("children without indexes: %v %+v", err, children)
	}
}
