package shared

import "sync"

// KeyedMutex serialises work per string key. Toggles and reconciliation
// passes on the same marketplace must never interleave; passes on
// different marketplaces may.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex constructs a KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// MarketplaceLockKey builds the lock key guarding one marketplace's rows.
func MarketplaceLockKey(marketplace string) string {
	return "catalog:marketplace:" + marketplace + ":lock"
}
