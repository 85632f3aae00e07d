package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lotto-service/internal/lock"
	appErr "lotto-service/pkg/errors"
)

func TestLocalLockExclusive(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocalLock(0, 0)

	token, ok, err := l.Acquire(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.Acquire(ctx, "k"); ok {
		t.Fatalf("second acquire must fail while held")
	}
	if err := l.Release(ctx, "k", "someone-else"); err != nil {
		t.Fatalf("release with foreign token: %v", err)
	}
	if _, ok, _ := l.Acquire(ctx, "k"); ok {
		t.Fatalf("foreign token must not release the lock")
	}
	if err := l.Release(ctx, "k", token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, ok, _ := l.Acquire(ctx, "k"); !ok {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestWithLockBusy(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocalLock(0, 0)
	key := lock.GameKey(7)

	err := lock.WithLock(ctx, l, key, func() error {
		return lock.WithLock(ctx, l, key, func() error { return nil })
	})
	if !errors.Is(err, appErr.ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if err := lock.WithLock(ctx, l, key, func() error { return nil }); err != nil {
		t.Fatalf("lock must be free after WithLock returns: %v", err)
	}
}

func TestWithLockSerializes(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocalLock(1000, time.Millisecond)

	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.WithLock(ctx, l, "game", func() error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
}
