package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// LocalLock is the in-process Locker used when Redis is disabled.
type LocalLock struct {
	mu      sync.Mutex
	held    map[string]string
	retries int
	backoff time.Duration
}

func NewLocalLock(retries int, backoff time.Duration) *LocalLock {
	return &LocalLock{
		held:    make(map[string]string),
		retries: retries,
		backoff: backoff,
	}
}

func (l *LocalLock) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := newToken()
	for attempt := 0; attempt <= l.retries; attempt++ {
		if l.tryAcquire(key, token) {
			return token, true, nil
		}
		if attempt < l.retries {
			if err := wait(ctx, l.backoff); err != nil {
				return "", false, err
			}
		}
	}
	return "", false, nil
}

func (l *LocalLock) tryAcquire(key, token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return false
	}
	l.held[key] = token
	return true
}

func (l *LocalLock) Release(_ context.Context, key, token string) error {
	if key == "" || token == "" {
		return errors.New("lock key and token are required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
