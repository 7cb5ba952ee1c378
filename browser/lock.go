package browser

import (
	"context"
	"sync"
)

// SessionLock runs tasks one at a time in the order they were submitted.
// Every submission links a fresh channel behind the current tail and waits
// for its predecessor's channel to close before running.
type SessionLock struct {
	mu   sync.Mutex
	tail chan struct{}
}

// NewSessionLock creates an idle lock.
func NewSessionLock() *SessionLock {
	done := make(chan struct{})
	close(done)
	return &SessionLock{tail: done}
}

// Run blocks until all earlier tasks finished, then runs task.
// If ctx is cancelled while still queued, task is skipped and ctx.Err() returned.
// An admitted task always runs to completion.
func (l *SessionLock) Run(ctx context.Context, task func() error) error {
	l.mu.Lock()
	prev := l.tail
	next := make(chan struct{})
	l.tail = next
	l.mu.Unlock()

	select {
	case <-prev:
	case <-ctx.Done():
		// keep the chain intact for whoever queued behind us
		go func() {
			<-prev
			close(next)
		}()
		return ctx.Err()
	}

	defer close(next)
	return task()
}
