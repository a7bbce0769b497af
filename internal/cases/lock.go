package cases

import "sync"

// keyedLock serializes work per key in arrival order. Unrelated keys never
// contend beyond the short map critical section.
type keyedLock struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	waiters []chan struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[string]*slot)}
}

// Lock blocks until every earlier caller for key has called Unlock.
func (l *keyedLock) Lock(key string) {
	l.mu.Lock()
	s, held := l.slots[key]
	if !held {
		l.slots[key] = &slot{}
		l.mu.Unlock()
		return
	}
	turn := make(chan struct{})
	s.waiters = append(s.waiters, turn)
	l.mu.Unlock()
	<-turn
}

// Unlock hands the key to the oldest waiter, or frees it.
func (l *keyedLock) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	if len(s.waiters) == 0 {
		delete(l.slots, key)
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next)
}

func (l *keyedLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
