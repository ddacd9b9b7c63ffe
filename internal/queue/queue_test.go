package queue

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestSaveWritesEmptyListsAsArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "select.json")
	if err := Save(path, &Queue{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); got != "{\"completed\":[],\"queued\":[],\"failed\":[]}\n" {
		t.Fatalf("unexpected file: %q", got)
	}
}

func TestPopMovesBetweenLists(t *testing.T) {
	q := New()
	q.Enqueue("/r/a")
	q.Enqueue("/r/b")

	head, ok := q.Pop()
	if !ok || head != "/r/a" {
		t.Fatalf("pop = %q %v", head, ok)
	}
	q.Complete(head)
	head, _ = q.Pop()
	q.Fail(head)

	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue")
	}
	if q.State("/r/a") != "completed" || q.State("/r/b") != "failed" || q.State("/r/c") != "" {
		t.Fatalf("unexpected states: %+v", q)
	}
}

func TestStoreRoundTripAndLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "select.json")
	q := New()
	q.Enqueue("/r/x")
	q.Enqueue("/r/y")
	if err := Save(path, q); err != nil {
		t.Fatalf("save: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "in use") {
		t.Fatalf("expected second open to fail, got %v", err)
	}

	head, _ := s.Queue().Pop()
	s.Queue().Complete(head)
	if err := s.Save(); err != nil {
		t.Fatalf("store save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(reloaded.Completed, []string{"/r/x"}) || !slices.Equal(reloaded.Queued, []string{"/r/y"}) {
		t.Fatalf("unexpected queue: %+v", reloaded)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".select.json.") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "select.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
