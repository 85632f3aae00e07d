package broadcast

import (
	"context"
	"sync"
)

// MemoryBroker delivers updates within one process.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int64]map[int]chan []byte
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[int64]map[int]chan []byte)}
}

func (b *MemoryBroker) Publish(_ context.Context, u Update) error {
	payload, err := encode(u)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[u.GameID] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, gameID int64) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 16)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[int]chan []byte)
	}
	b.subs[gameID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[gameID], id)
			if len(b.subs[gameID]) == 0 {
				delete(b.subs, gameID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
