package cricket

import "sync"

// matchLocks hands out one mutex per match. Entries are dropped once no
// caller holds or waits on them.
type matchLocks struct {
	mu    sync.Mutex
	locks map[string]*matchLock
}

type matchLock struct {
	mu   sync.Mutex
	refs int
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[string]*matchLock)}
}

// lock blocks until matchID is free and returns the unlock func.
func (l *matchLocks) lock(matchID string) func() {
	l.mu.Lock()
	ml, ok := l.locks[matchID]
	if !ok {
		ml = &matchLock{}
		l.locks[matchID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, matchID)
		}
		l.mu.Unlock()
	}
}
