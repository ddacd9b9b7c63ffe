// Package tree holds the reduced, immutable form of a crawl and its
// positional JSON encoding:
//
//	[name, kind, size, child_0, child_1, ...]
//
// kind is 0 for a directory and 1 for a file. Children carry no sort key, so
// producers must emit them in entry.Compare order.
package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/michaelscutari/treesize/internal/entry"
)

// Node is one reduced filesystem entry.
type Node struct {
	Name     string
	Kind     entry.Kind
	Size     int64
	Children []*Node
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == entry.KindDir
}

// MarshalJSON encodes the node as a positional array without HTML escaping.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := appendNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendNode(buf *bytes.Buffer, n *Node) error {
	name, err := encodeString(n.Name)
	if err != nil {
		return err
	}

	buf.WriteByte('[')
	buf.Write(name)
	buf.WriteByte(',')
	buf.WriteString(strconv.Itoa(int(n.Kind)))
	buf.WriteByte(',')
	buf.WriteString(strconv.FormatInt(n.Size, 10))
	for _, child := range n.Children {
		buf.WriteByte(',')
		if err := appendNode(buf, child); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a positional array.
func (n *Node) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding node: %w", err)
	}
	if len(fields) < 3 {
		return fmt.Errorf("decoding node: expected at least 3 fields, got %d", len(fields))
	}

	var kind int
	if err := json.Unmarshal(fields[0], &n.Name); err != nil {
		return fmt.Errorf("decoding node name: %w", err)
	}
	if err := json.Unmarshal(fields[1], &kind); err != nil {
		return fmt.Errorf("decoding kind of %q: %w", n.Name, err)
	}
	if err := json.Unmarshal(fields[2], &n.Size); err != nil {
		return fmt.Errorf("decoding size of %q: %w", n.Name, err)
	}
	n.Kind = entry.Kind(kind)

	n.Children = nil
	if len(fields) > 3 {
		n.Children = make([]*Node, 0, len(fields)-3)
	}
	for _, raw := range fields[3:] {
		child := &Node{}
		if err := child.UnmarshalJSON(raw); err != nil {
			return err
		}
		n.Children = append(n.Children, child)
	}
	return nil
}

// Write encodes root to w followed by a newline.
func Write(w io.Writer, root *Node) error {
	data, err := root.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing tree: %w", err)
	}
	return nil
}

// WriteFile encodes root into path, replacing any existing file.
func WriteFile(path string, root *Node) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, root); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a single tree from r.
func Read(r io.Reader) (*Node, error) {
	root := &Node{}
	if err := json.NewDecoder(r).Decode(root); err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}
	return root, nil
}

// ReadFile decodes the tree stored at path.
func ReadFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// WalkFunc is called for every node in pre-order. path is base joined with
// the names of the node's ancestors below the root and the node itself.
type WalkFunc func(path string, n *Node, depth int) error

// SkipChildren can be returned by a WalkFunc to not descend into a node.
var SkipChildren = errors.New("skip children")

// Walk visits root and its descendants in encoded order, using base as the
// root's path.
func Walk(base string, root *Node, fn WalkFunc) error {
	return walk(base, root, 0, fn)
}

func walk(path string, n *Node, depth int, fn WalkFunc) error {
	if err := fn(path, n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, child := range n.Children {
		if err := walk(filepath.Join(path, child.Name), child, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}
