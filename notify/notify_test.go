// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitReturnsImmediatelyWhenBehind(t *testing.T) {
	b := New()
	b.Notify()
	b.Notify()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	version, err := b.Wait(ctx, 0)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if version != 2 {
		t.Errorf("Wait() version = %d, want 2", version)
	}
}

func TestWaitWakesOnNotify(t *testing.T) {
	b := New()

	done := make(chan int64, 1)
	go func() {
		version, err := b.Wait(context.Background(), 0)
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
		done <- version
	}()

	// Give the waiter time to block, then signal
	time.Sleep(20 * time.Millisecond)
	b.Notify()

	select {
	case version := <-done:
		if version != 1 {
			t.Errorf("Wait() version = %d, want 1", version)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not wake after Notify()")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	b := New()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	version, err := b.Wait(ctx, 0)
	if err == nil {
		t.Error("Wait() expected context error")
	}
	if version != 0 {
		t.Errorf("Wait() version = %d, want 0", version)
	}
}

func TestAllWaitersWake(t *testing.T) {
	b := New()

	const waiters = 50
	var woke atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Wait(context.Background(), 0); err == nil {
				woke.Add(1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	b.Notify()
	wg.Wait()

	if woke.Load() != waiters {
		t.Errorf("woke %d waiters, want %d", woke.Load(), waiters)
	}
}

func TestVersionIsMonotonic(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Notify()
		}()
	}
	wg.Wait()

	if got := b.Version(); got != 20 {
		t.Errorf("Version() = %d, want 20", got)
	}
}
