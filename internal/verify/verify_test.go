package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTotalSumsRegularFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 10)
	writeFile(t, filepath.Join(root, "sub", "b.txt"), 5)
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.txt"), 7)
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	totals, err := Total(context.Background(), root, Options{Workers: 4})
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if totals.Size != 22 || totals.Files != 3 || totals.Errors != 0 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestTotalHonorsExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep", "a"), 3)
	writeFile(t, filepath.Join(root, "skip", "b"), 100)

	totals, err := Total(context.Background(), root, Options{
		Exclude: func(path string) bool { return strings.HasSuffix(path, "/skip") },
	})
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if totals.Size != 3 {
		t.Fatalf("size = %d, want 3", totals.Size)
	}
}

func TestTotalFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, 9)

	totals, err := Total(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if totals.Size != 9 || totals.Files != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestTotalMissingRoot(t *testing.T) {
	totals, err := Total(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if totals.Errors != 1 || totals.Size != 0 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}
