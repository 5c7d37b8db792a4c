package locker

import (
	"context"
	"sync"
)

// MemoryLocker is the in-process TargetLocker used by default: one mutex per
// target path, allocated lazily and never reclaimed (the set of targets is
// small and bounded by plan size).
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, target string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[target]

	if !ok {
		lock = &sync.Mutex{}
		l.locks[target] = lock
	}
	l.mu.Unlock()

	acquired := make(chan struct{})

	go func() {
		lock.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return lock.Unlock, nil
	case <-ctx.Done():
		// The goroutine will still acquire eventually; release immediately
		// so the lock is not leaked.
		go func() {
			<-acquired
			lock.Unlock()
		}()

		return nil, ctx.Err()
	}
}
