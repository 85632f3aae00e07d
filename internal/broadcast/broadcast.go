package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Update is one change to a game pushed to live subscribers.
type Update struct {
	Type   string      `json:"type"` // event, finished, abandoned
	GameID int64       `json:"game_id"`
	Data   interface{} `json:"data,omitempty"`
	SentAt time.Time   `json:"sent_at"`
}

// Broker fans game updates out to subscribers as encoded JSON messages.
type Broker interface {
	Publish(ctx context.Context, u Update) error
	Subscribe(ctx context.Context, gameID int64) (<-chan []byte, func(), error)
}

func Channel(gameID int64) string {
	return fmt.Sprintf("lotto:game:%d", gameID)
}

func encode(u Update) ([]byte, error) {
	if u.SentAt.IsZero() {
		u.SentAt = time.Now().UTC()
	}
	return json.Marshal(u)
}
