// Package lock provides the single-writer lock held by ingestion across the
// store swap.
package lock

import (
	"context"
)

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Local is an in-process lock that honours context cancellation while waiting.
type Local struct {
	ch chan struct{}
}

func NewLocal() *Local {
	return &Local{ch: make(chan struct{}, 1)}
}

func (l *Local) Lock(ctx context.Context) (Unlock, error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
