package tree

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/michaelscutari/treesize/internal/entry"
)

func sampleTree() *Node {
	return &Node{
		Name: "R",
		Kind: entry.KindDir,
		Size: 15,
		Children: []*Node{
			{Name: "sub", Kind: entry.KindDir},
			{Name: "a.txt", Kind: entry.KindFile, Size: 10},
			{Name: "b.txt", Kind: entry.KindFile, Size: 5},
		},
	}
}

func TestWriteEncodesPositionalArray(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleTree()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := `["R",0,15,["sub",0,0],["a.txt",1,10],["b.txt",1,5]]` + "\n"
	if buf.String() != want {
		t.Fatalf("unexpected encoding:\n got %s\nwant %s", buf.String(), want)
	}
}

func TestMarshalDoesNotEscapeHTML(t *testing.T) {
	n := &Node{Name: `a<b>&"c"`, Kind: entry.KindFile, Size: 1}
	data, err := n.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `["a<b>&\"c\"",1,1]`; string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestReadFileDecodesWrittenTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "find.json")
	if err := WriteFile(path, sampleTree()); err != nil {
		t.Fatalf("write file: %v", err)
	}

	root, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if root.Name != "R" || root.Kind != entry.KindDir || root.Size != 15 {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(root.Children))
	}
	if sub := root.Children[0]; sub.Name != "sub" || !sub.IsDir() || len(sub.Children) != 0 {
		t.Fatalf("unexpected first child: %+v", sub)
	}
	if a := root.Children[1]; a.Name != "a.txt" || a.Kind != entry.KindFile || a.Size != 10 {
		t.Fatalf("unexpected second child: %+v", a)
	}
}

func TestReadRejectsShortNode(t *testing.T) {
	_, err := Read(strings.NewReader(`["R",0]`))
	if err == nil {
		t.Fatalf("expected error for node with two fields")
	}
}

func TestWalkVisitsInEncodedOrder(t *testing.T) {
	var visited []string
	err := Walk("/data/R", sampleTree(), func(path string, n *Node, depth int) error {
		visited = append(visited, path)
		if n.Name == "sub" && depth != 1 {
			t.Fatalf("sub at depth %d", depth)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	want := []string{"/data/R", "/data/R/sub", "/data/R/a.txt", "/data/R/b.txt"}
	if strings.Join(visited, ",") != strings.Join(want, ",") {
		t.Fatalf("visited %v, want %v", visited, want)
	}
}

func TestWalkSkipChildren(t *testing.T) {
	count := 0
	err := Walk("R", sampleTree(), func(path string, n *Node, depth int) error {
		count++
		return SkipChildren
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the root to be visited, got %d", count)
	}
}
