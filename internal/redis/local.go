package redisclient

import (
	"context"
	"sync"
)

type localLocker struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

// NewLocalLocker is the single-process Locker used when no Redis is configured.
// Callers queue on a held key until it is released or their ctx ends.
func NewLocalLocker() Locker {
	return &localLocker{keys: map[string]chan struct{}{}}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sem := l.semaphore(key)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	return fn(ctx)
}

// one slot per key; keys are therapist ids so the map stays small
func (l *localLocker) semaphore(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.keys[key]
	if !ok {
		sem = make(chan struct{}, 1)
		l.keys[key] = sem
	}
	return sem
}
