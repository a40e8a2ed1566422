package service

import "sync"

// KeyLocks hands out per-idempotency-key advisory locks so that same-key
// callers inside one process take turns instead of both racing to storage.
// This is purely a round-trip optimization: cross-process correctness rests
// on the storage layer's atomic insert, and the processor works with a nil
// *KeyLocks. Entries are reference-counted and removed as soon as the last
// holder releases, so the table stays bounded by in-flight keys.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the lock for key is held and returns the release
// function. Callers must release on every exit path.
func (l *KeyLocks) Acquire(key string) (release func()) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports the number of keys currently tracked.
func (l *KeyLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
