package room

import "sync"

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// roomLocker hands out one mutex per room id. Entries live only while someone holds or waits on them.
type roomLocker struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

func newRoomLocker() *roomLocker {
	return &roomLocker{
		locks: make(map[string]*roomLock),
	}
}

func (l *roomLocker) lock(roomID string) (unlock func()) {
	l.mu.Lock()
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}
