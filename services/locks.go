package services

import (
	"context"
	"sync"
)

// accountLocks serializes submissions per source account. Every transaction
// consumes the account's single sequence number, so two in-flight submissions
// from one account would race on it.
type accountLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newAccountLocks() *accountLocks {
	l := accountLocks{
		held: make(map[string]chan struct{}),
	}
	return &l
}

// acquire blocks until the account is free or the context is done.
func (l *accountLocks) acquire(ctx context.Context, account string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.held[account]
	if !ok {
		sem = make(chan struct{}, 1)
		l.held[account] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
