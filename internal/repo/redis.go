package repo

import (
	"context"
	"time"

	"lotto-service/internal/config"
	"lotto-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

// NewRedis builds a client for the game locks and the live update channel
// and checks it answers.
func NewRedis(ctx context.Context, conf config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// InitRedis connects when redis is enabled and leaves RDB nil otherwise,
// which switches locks and live updates to their in-process versions.
func InitRedis() {
	conf := config.GlobalConfig.Redis
	if !conf.Enabled {
		logger.Log.Info("Redis disabled, using in-process locks and broker")
		return
	}

	client, err := NewRedis(context.Background(), conf)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.String("addr", conf.Addr), zap.Error(err))
	}
	RDB = client
	logger.Log.Info("Redis ready", zap.String("addr", conf.Addr))
}
