// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"sync"
)

// Broadcaster is an in-process change signal with a monotonically increasing
// version. Lifecycle handlers call Notify after committing a change; long-poll
// clients call Wait with the last version they saw.
type Broadcaster struct {
	mu      sync.Mutex
	version int64
	ch      chan struct{} // closed and replaced on every Notify
}

func New() *Broadcaster {
	return &Broadcaster{ch: make(chan struct{})}
}

// Notify bumps the version and wakes all current waiters. Returns the new
// version.
func (b *Broadcaster) Notify() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.version++
	close(b.ch)
	b.ch = make(chan struct{})
	return b.version
}

// Version returns the current version without blocking.
func (b *Broadcaster) Version() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Wait blocks until the version exceeds since, then returns it. If ctx is
// done first, Wait returns the version seen so far along with ctx.Err(), so
// the caller can still answer a long-poll with the current value.
func (b *Broadcaster) Wait(ctx context.Context, since int64) (int64, error) {
	for {
		b.mu.Lock()
		version, ch := b.version, b.ch
		b.mu.Unlock()

		if version > since {
			return version, nil
		}

		select {
		case <-ctx.Done():
			return version, ctx.Err()
		case <-ch:
			// re-check under the lock
		}
	}
}
