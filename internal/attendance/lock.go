package attendance

import "sync"

// keyMutex serializes work per string key. Scans for the same
// (student, subject, date) queue behind one another while unrelated keys
// proceed in parallel. Entries are refcounted so the map stays small.
type keyMutex struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{keys: make(map[string]*keyLock)}
}

func (k *keyMutex) Lock(key string) {
	k.mu.Lock()
	l, ok := k.keys[key]
	if !ok {
		l = &keyLock{}
		k.keys[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

func (k *keyMutex) Unlock(key string) {
	k.mu.Lock()
	l := k.keys[key]
	l.refs--
	if l.refs == 0 {
		delete(k.keys, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
