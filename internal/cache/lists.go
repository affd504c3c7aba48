package cache

import (
	"context"
	"sync"
	"time"
)

// Lists caches one loaded value per key. Invalidate marks a key changed so
// that a load which started before the change never fills the cache with
// what it read.
type Lists[T any] struct {
	lru *LRUCache[T]

	mu  sync.Mutex
	gen map[string]uint64
}

func NewLists[T any](maxSize int, ttl time.Duration) *Lists[T] {
	return &Lists[T]{lru: NewLRUCache[T](maxSize, ttl), gen: make(map[string]uint64)}
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. hit reports whether the value came from the cache.
func (l *Lists[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if v, ok := l.lru.Get(key); ok {
		return v, true, nil
	}

	l.mu.Lock()
	before := l.gen[key]
	l.mu.Unlock()

	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}

	l.mu.Lock()
	if l.gen[key] == before {
		l.lru.Set(key, v)
	}
	l.mu.Unlock()
	return v, false, nil
}

func (l *Lists[T]) Invalidate(key string) {
	l.mu.Lock()
	l.gen[key]++
	l.lru.Delete(key)
	l.mu.Unlock()
}

func (l *Lists[T]) CleanExpired() int { return l.lru.CleanExpired() }

func (l *Lists[T]) Size() int { return l.lru.Size() }

func (l *Lists[T]) Stats() (hits, misses int64) { return l.lru.Stats() }
