package lock

import (
	"context"
	"fmt"
	"time"

	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Locker serializes work on one key across callers.
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

func GameKey(gameID int64) string {
	return fmt.Sprintf("lotto:lock:game:%d", gameID)
}

func SessionKey(sessionID string) string {
	return "lotto:lock:session:" + sessionID
}

// WithLock runs fn while holding key. It returns appErr.ErrLockBusy when the
// lock could not be taken within the locker's retry budget.
func WithLock(ctx context.Context, l Locker, key string, fn func() error) error {
	token, ok, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", appErr.ErrLockBusy, key)
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

func newToken() string {
	return uuid.NewString()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
