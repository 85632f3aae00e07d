package service

import (
	"lotto-service/internal/broadcast"
	"lotto-service/internal/config"
	"lotto-service/internal/lock"
	"lotto-service/internal/service/game"
	"lotto-service/internal/service/session"
	"lotto-service/internal/service/speech"
	"lotto-service/internal/service/stats"
	"lotto-service/internal/service/transcription"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Game          *game.Service
	Session       *session.Service
	Stats         *stats.Service
	Speech        *speech.Service
	Transcription *transcription.Service
	Broker        broadcast.Broker
}

// NewContainer wires the services. With a nil Redis client locks and live
// updates stay inside this process.
func NewContainer(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Container {
	var (
		locker lock.Locker
		broker broadcast.Broker
	)
	if rdb != nil {
		locker = lock.NewRedisLock(rdb, cfg.Redis.LockTTL, cfg.Redis.LockRetries, cfg.Redis.LockBackoff)
		broker = broadcast.NewRedisBroker(rdb)
	} else {
		locker = lock.NewLocalLock(cfg.Redis.LockRetries, cfg.Redis.LockBackoff)
		broker = broadcast.NewMemoryBroker()
	}

	clock := quartz.NewReal()
	games := game.NewService(db, locker, game.WithBroker(broker), game.WithClock(clock))

	return &Container{
		Game:    games,
		Session: session.NewService(db, games, locker),
		Stats:   stats.NewService(db, clock),
		Speech: speech.NewService(speech.Config{
			ConfidenceThreshold: cfg.Speech.ConfidenceThreshold,
			AmbiguityDelta:      cfg.Speech.AmbiguityDelta,
			MaxCandidates:       cfg.Speech.MaxCandidates,
		}),
		Transcription: transcription.NewService(transcription.NewClient(cfg.Transcription)),
		Broker:        broker,
	}
}
