package selection

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
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

func TestSelectRootThatFits(t *testing.T) {
	root := dir("R", file("a", 3), file("b", 4))
	q := New(10).Select("/data/R", root)
	if !slices.Equal(q.Queued, []string{"/data/R"}) {
		t.Fatalf("queued = %v", q.Queued)
	}
	if len(q.Completed) != 0 || len(q.Failed) != 0 {
		t.Fatalf("unexpected lists: %+v", q)
	}
}

func TestSelectExpandsOversizedDirectories(t *testing.T) {
	root := dir("R",
		dir("big",
			dir("x", file("1", 6)),
			dir("y", file("2", 7)),
		),
		dir("small", file("3", 2)),
		file("exact", 10),
	)

	q := New(10).Select("/R", root)
	want := []string{"/R/big/x", "/R/big/y", "/R/small", "/R/exact"}
	if !slices.Equal(q.Queued, want) {
		t.Fatalf("queued = %v, want %v", q.Queued, want)
	}

	for i, a := range q.Queued {
		for j, b := range q.Queued {
			if i != j && strings.HasPrefix(b, a+"/") {
				t.Fatalf("%s is nested under %s", b, a)
			}
		}
	}
}

func TestSelectQueuesOversizedFileAndWarns(t *testing.T) {
	var logs bytes.Buffer
	s := New(10)
	s.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	root := dir("R", file("huge", 50), file("ok", 1))
	units := s.Units("/R", root)

	if len(units) != 2 || units[0].Path != "/R/huge" || units[0].Size != 50 || units[0].Dir {
		t.Fatalf("unexpected units: %+v", units)
	}
	if !strings.Contains(logs.String(), "file exceeds threshold") {
		t.Fatalf("missing warning in %q", logs.String())
	}
}

func TestParseThreshold(t *testing.T) {
	n, err := ParseThreshold("1TB")
	if err != nil || n != DefaultThreshold {
		t.Fatalf("1TB = %d, %v", n, err)
	}
	if n, _ := ParseThreshold("2KiB"); n != 2048 {
		t.Fatalf("2KiB = %d", n)
	}
	for _, bad := range []string{"", "lots", "0"} {
		if _, err := ParseThreshold(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
