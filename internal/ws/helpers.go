package ws

import (
	"sync"

	"github.com/google/uuid"
)

func newConnID() string {
	return uuid.NewString()
}

// boardLocks hands out one mutex per board id. Entries are dropped once no goroutine holds or
// waits on them.
type boardLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newBoardLocks() *boardLocks {
	return &boardLocks{locks: make(map[string]*refMutex)}
}

func (l *boardLocks) lock(boardID string) func() {
	l.mu.Lock()
	m, ok := l.locks[boardID]
	if !ok {
		m = &refMutex{}
		l.locks[boardID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, boardID)
		}
		l.mu.Unlock()
	}
}

func (l *boardLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
