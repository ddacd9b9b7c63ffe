package rollup

import (
	"context"
	"errors"
	"testing"

	"github.com/michaelscutari/treesize/internal/entry"
	"github.com/michaelscutari/treesize/internal/tree"
)

func dir(name string, children ...*tree.Node) *tree.Node {
	n := &tree.Node{Name: name, Kind: entry.KindDir, Children: children}
	for _, c := range children {
		n.Size += c.Size
	}
	return n
}

func file(name string, size int64) *tree.Node {
	return &tree.Node{Name: name, Kind: entry.KindFile, Size: size}
}

func sample() *tree.Node {
	return dir("root",
		dir("a", file("file1", 10), file("file2", 5)),
		dir("b", file("file3", 20), dir("empty")),
		file("top", 1),
	)
}

func TestBuilderRollup(t *testing.T) {
	table, err := NewBuilder().Build(context.Background(), "/root", sample())
	if err != nil {
		t.Fatalf("build rollups: %v", err)
	}
	if len(table) != 4 {
		t.Fatalf("expected 4 directory rollups, got %d", len(table))
	}

	rootA, ok := table.Get("/root/a")
	if !ok {
		t.Fatalf("rollup /root/a missing")
	}
	if rootA.TotalSize != 15 || rootA.TotalFiles != 2 || rootA.TotalDirs != 0 {
		t.Fatalf("unexpected /root/a rollup: %+v", rootA)
	}

	rootB, _ := table.Get("/root/b")
	if rootB.TotalSize != 20 || rootB.TotalFiles != 1 || rootB.TotalDirs != 1 {
		t.Fatalf("unexpected /root/b rollup: %+v", rootB)
	}

	root, _ := table.Get("/root")
	if root.TotalSize != 36 || root.TotalFiles != 4 || root.TotalDirs != 3 {
		t.Fatalf("unexpected /root rollup: %+v", root)
	}
}

func TestBuilderSortedAndProgress(t *testing.T) {
	b := NewBuilder()
	var last int64
	b.SetProgressFunc(func(done int64) { last = done })

	table, err := b.Build(context.Background(), "/root", sample())
	if err != nil {
		t.Fatalf("build rollups: %v", err)
	}
	if last != 4 {
		t.Fatalf("final progress = %d, want 4", last)
	}

	sorted := table.Sorted()
	want := []string{"/root", "/root/a", "/root/b", "/root/b/empty"}
	for i, r := range sorted {
		if r.Path != want[i] {
			t.Fatalf("sorted[%d] = %s, want %s", i, r.Path, want[i])
		}
	}
}

func TestBuilderFileRootHasNoRollups(t *testing.T) {
	table, err := NewBuilder().Build(context.Background(), "/f", file("f", 3))
	if err != nil {
		t.Fatalf("build rollups: %v", err)
	}
	if len(table) != 0 {
		t.Fatalf("unexpected rollups: %+v", table)
	}
}

func TestBuilderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBuilder().Build(ctx, "/root", sample()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
