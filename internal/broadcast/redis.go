package broadcast

import (
	"context"
	"sync"

	"lotto-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker relays updates over Redis pub/sub so every server instance
// sees every game.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, u Update) error {
	payload, err := encode(u)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, Channel(u.GameID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, gameID int64) (<-chan []byte, func(), error) {
	sub := b.client.Subscribe(ctx, Channel(gameID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					logger.Log.Warn("dropping game update for slow subscriber", zap.Int64("gameID", gameID))
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				logger.Log.Debug("redis unsubscribe", zap.Error(err))
			}
		})
	}
	return out, cancel, nil
}
