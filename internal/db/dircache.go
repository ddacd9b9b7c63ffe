package db

import (
	"container/list"
	"database/sql"
	"sync"

	"github.com/sasha-s/go-deadlock"
)

const dirCacheSize = 4096

// lru is a fixed-size least-recently-used map safe for concurrent use.
type lru[K comparable, V any] struct {
	mu    deadlock.Mutex
	limit int
	order *list.List // front is most recent
	index map[K]*list.Element
}

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](limit int) *lru[K, V] {
	return &lru[K, V]{
		limit: limit,
		order: list.New(),
		index: make(map[K]*list.Element, limit),
	}
}

// newDirCache maps directory paths to dirs.id.
func newDirCache(limit int) *lru[string, int64] {
	return newLRU[string, int64](limit)
}

func (c *lru[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).value, true
}

func (c *lru[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*lruItem[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&lruItem[K, V]{key: key, value: value})

	for c.order.Len() > c.limit {
		oldest := c.order.Remove(c.order.Back()).(*lruItem[K, V])
		delete(c.index, oldest.key)
	}
}

// Caches are keyed by handle, so every open snapshot gets its own.
var dirCaches sync.Map // *sql.DB -> *lru[string, int64]

func getDirCache(db *sql.DB) *lru[string, int64] {
	if c, ok := dirCaches.Load(db); ok {
		return c.(*lru[string, int64])
	}
	c, _ := dirCaches.LoadOrStore(db, newDirCache(dirCacheSize))
	return c.(*lru[string, int64])
}
