package lock

import (
	"context"
	"sync"
)

// Locker serializes operations on a key. Acquire blocks until the key is
// free or ctx is done and returns the function that releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

type localLocker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

// NewLocalLocker serializes callers within this process.
func NewLocalLocker() Locker {
	return &localLocker{keys: map[string]*entry{}}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.deref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.deref(key, e)
		})
	}, nil
}

func (l *localLocker) deref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
