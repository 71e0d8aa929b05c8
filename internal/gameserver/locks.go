package gameserver

import "sync"

// KeyedLocks hands out one mutex per key. Entries are reference counted and
// dropped when the last holder releases them, so the map only holds keys
// that are currently locked or awaited.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocks returns an empty KeyedLocks.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*refLock)}
}

// Lock blocks until key is held and returns the matching unlock func.
//
// Postcondition: callers must invoke the returned func exactly once.
func (k *KeyedLocks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// With runs fn while holding key.
func (k *KeyedLocks) With(key string, fn func() error) error {
	unlock := k.Lock(key)
	defer unlock()
	return fn()
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
