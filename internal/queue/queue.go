// Package queue holds the upload work queue shared by select and upload.
package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gofrs/flock"
)

// Queue lists upload units by state. A path appears in at most one list.
type Queue struct {
	Completed []string `json:"completed"`
	Queued    []string `json:"queued"`
	Failed    []string `json:"failed"`
}

// New returns an empty queue that encodes its lists as [] rather than null.
func New() *Queue {
	return &Queue{
		Completed: []string{},
		Queued:    []string{},
		Failed:    []string{},
	}
}

// Len returns the number of paths still queued.
func (q *Queue) Len() int {
	return len(q.Queued)
}

// Enqueue appends path to the queued list.
func (q *Queue) Enqueue(path string) {
	q.Queued = append(q.Queued, path)
}

// Pop removes and returns the head of the queued list.
func (q *Queue) Pop() (string, bool) {
	if len(q.Queued) == 0 {
		return "", false
	}
	head := q.Queued[0]
	q.Queued = slices.Delete(q.Queued, 0, 1)
	return head, true
}

// Requeue puts path back at the head of the queued list.
func (q *Queue) Requeue(path string) {
	q.Queued = slices.Insert(q.Queued, 0, path)
}

// Complete records path as uploaded.
func (q *Queue) Complete(path string) {
	q.Completed = append(q.Completed, path)
}

// Fail records path as failed by every tool.
func (q *Queue) Fail(path string) {
	q.Failed = append(q.Failed, path)
}

// State returns the list path is in: "completed", "queued", "failed" or "".
func (q *Queue) State(path string) string {
	switch {
	case slices.Contains(q.Completed, path):
		return "completed"
	case slices.Contains(q.Queued, path):
		return "queued"
	case slices.Contains(q.Failed, path):
		return "failed"
	}
	return ""
}

func (q *Queue) normalize() {
	if q.Completed == nil {
		q.Completed = []string{}
	}
	if q.Queued == nil {
		q.Queued = []string{}
	}
	if q.Failed == nil {
		q.Failed = []string{}
	}
}

// Load reads a queue file.
func Load(path string) (*Queue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	q := New()
	if err := json.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("decoding queue %s: %w", path, err)
	}
	q.normalize()
	return q, nil
}

// Save writes q to path atomically: a crash leaves either the old or the new
// file, never a partial one.
func Save(path string, q *Queue) error {
	q.normalize()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(q); err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp queue: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing queue: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing queue: %w", err)
	}
	return nil
}

// Store is a queue file held under an exclusive lock until Close.
type Store struct {
	path  string
	lock  *flock.Flock
	queue *Queue
}

// Open locks path and loads its queue. It fails if another process holds
// the lock.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking queue: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("queue %s is in use by another process", path)
	}

	q, err := Load(path)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return &Store{path: path, lock: lock, queue: q}, nil
}

// Path returns the queue file location.
func (s *Store) Path() string {
	return s.path
}

// Queue returns the locked queue. Mutations are persisted by Save.
func (s *Store) Queue() *Queue {
	return s.queue
}

// Save persists the queue.
func (s *Store) Save() error {
	return Save(s.path, s.queue)
}

// Close releases the lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}
