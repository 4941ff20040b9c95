package usecase

import (
	"context"
	"sync"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// SessionLocker serializes requests that share a session id so that each
// one sees the history the previous one recorded.
type SessionLocker struct {
	mu    sync.Mutex
	turns map[string]*sessionTurn
}

// sessionTurn is a one-slot semaphore plus the number of holders and waiters.
type sessionTurn struct {
	slot chan struct{}
	refs int
}

// NewSessionLocker creates an empty locker.
func NewSessionLocker() *SessionLocker {
	return &SessionLocker{turns: make(map[string]*sessionTurn)}
}

// Lock waits for the session's turn or for ctx to end. The returned unlock
// must be called exactly once.
func (l *SessionLocker) Lock(ctx context.Context, sessionID string) (unlock func(), err error) {
	l.mu.Lock()
	t, ok := l.turns[sessionID]
	if !ok {
		t = &sessionTurn{slot: make(chan struct{}, 1)}
		l.turns[sessionID] = t
	}
	t.refs++
	l.mu.Unlock()

	select {
	case t.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-t.slot
				l.release(sessionID, t)
			})
		}, nil
	case <-ctx.Done():
		l.release(sessionID, t)
		return nil, domain.WrapOp("SessionLocker.Lock", ctx.Err())
	}
}

func (l *SessionLocker) release(sessionID string, t *sessionTurn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.refs--
	if t.refs == 0 {
		delete(l.turns, sessionID)
	}
}

// ActiveCount returns the number of sessions with a holder or a waiter.
func (l *SessionLocker) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
