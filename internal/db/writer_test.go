package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/rollup"
	"github.com/michaelscutari/treesize/internal/tree"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	if err := InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return database
}

func sampleTree() *tree.Node {
	return &tree.Node{Name: "root", Kind: entry.KindDir, Size: 350, Children: []*tree.Node{
		{Name: "dir1", Kind: entry.KindDir, Size: 100, Children: []*tree.Node{
			{Name: "inner", Kind: entry.KindFile, Size: 100},
		}},
		{Name: "empty", Kind: entry.KindDir},
		{Name: "file1", Kind: entry.KindFile, Size: 200},
		{Name: "file2", Kind: entry.KindFile, Size: 50},
	}}
}

func writeSample(t *testing.T, database *sql.DB, batchSize int) *Writer {
	t.Helper()
	root := sampleTree()
	table, err := rollup.NewBuilder().Build(context.Background(), "/root", root)
	if err != nil {
		t.Fatalf("build rollups: %v", err)
	}
	w := NewWriter(database, batchSize)
	if err := w.WriteTree(context.Background(), "/root", root, table); err != nil {
		t.Fatalf("write tree: %v", err)
	}
	return w
}

func TestWriterStoresTree(t *testing.T) {
	database := openMemory(t)
	w := writeSample(t, database, 2)

	if p := w.Progress(); p.Files != 3 || p.Dirs != 3 {
		t.Fatalf("unexpected progress: %+v", p)
	}

	var dirs, files int
	if err := database.QueryRow(`SELECT COUNT(*) FROM dirs`).Scan(&dirs); err != nil {
		t.Fatalf("count dirs: %v", err)
	}
	if err := database.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&files); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if dirs != 3 || files != 3 {
		t.Fatalf("dirs=%d files=%d", dirs, files)
	}

	r, err := GetRollup(database, "/root")
	if err != nil || r == nil {
		t.Fatalf("rollup /root: %v", err)
	}
	if r.TotalSize != 350 || r.TotalFiles != 3 || r.TotalDirs != 2 {
		t.Fatalf("unexpected /root rollup: %+v", r)
	}

	missing, err := GetRollup(database, "/root/file1")
	if err != nil || missing != nil {
		t.Fatalf("expected no rollup for a file, got %+v, %v", missing, err)
	}
}

func TestLoadChildrenSortsFilesAndDirsBySize(t *testing.T) {
	database := openMemory(t)
	writeSample(t, database, 0)

	children, err := LoadChildren(database, "/root/", "size", 10)
	if err != nil {
		t.Fatalf("load children: %v", err)
	}
	if len(children) != 4 {
		t.Fatalf("expected 4 children, got %d", len(children))
	}
	if children[0].Name != "file1" || children[0].Path != "/root/file1" {
		t.Fatalf("expected largest item first, got %+v", children[0])
	}
	if children[1].Name != "dir1" || !children[1].IsDir() || children[1].TotalFiles != 1 {
		t.Fatalf("unexpected second child: %+v", children[1])
	}

	ordered, err := LoadChildren(database, "/root", "tree", 0)
	if err != nil {
		t.Fatalf("load children: %v", err)
	}
	want := []string{"dir1", "empty", "file1", "file2"}
	for i, c := range ordered {
		if c.Name != want[i] {
			t.Fatalf("tree order[%d] = %s, want %s", i, c.Name, want[i])
		}
	}

	limited, err := LoadChildren(database, "/root", "name", 1)
	if err != nil {
		t.Fatalf("load children: %v", err)
	}
	if len(limited) != 1 || limited[0].Name != "dir1" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}

	if _, err := LoadChildren(database, "/nope", "size", 10); err == nil {
		t.Fatalf("expected error for unknown parent")
	}
}

func TestWriterMetaAndErrors(t *testing.T) {
	database := openMemory(t)
	w := NewWriter(database, 0)

	start := time.Unix(1700000000, 0)
	meta := entry.ScanMeta{
		RootPath:   "/root",
		StartTime:  start,
		EndTime:    start.Add(time.Minute),
		TotalSize:  350,
		FileCount:  3,
		DirCount:   3,
		ErrorCount: 2,
		MaxDepth:   -1,
		Workers:    8,
	}
	if err := w.WriteMeta(meta); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	errs := []entry.ScanError{
		{Path: "/root/b", Op: "stat", Message: "permission denied"},
		{Path: "/root/a", Op: "readdir", Message: "i/o error"},
	}
	if err := w.WriteErrors(errs); err != nil {
		t.Fatalf("write errors: %v", err)
	}

	got, err := GetScanMeta(database)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if got.RootPath != "/root" || got.Workers != 8 || got.MaxDepth != -1 || !got.EndTime.Equal(meta.EndTime) {
		t.Fatalf("unexpected meta: %+v", got)
	}

	loaded, err := LoadErrors(database, 0)
	if err != nil {
		t.Fatalf("load errors: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Path != "/root/a" || loaded[0].Op != "readdir" {
		t.Fatalf("unexpected errors: %+v", loaded)
	}
}

func TestDirCacheEvictsOldest(t *testing.T) {
	c := newDirCache(2)
	c.Set("/a", 1)
	c.Set("/b", 2)
	c.Get("/a")
	c.Set("/c", 3)

	if _, ok := c.Get("/b"); ok {
		t.Fatalf("expected /b to be evicted")
	}
	if id, ok := c.Get("/a"); !ok || id != 1 {
		t.Fatalf("expected /a to survive, got %d %v", id, ok)
	}
}
