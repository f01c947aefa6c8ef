package game

import "sync"

const subscriberBuffer = 16

// Broker fans dashboards out to subscribers of a game. A subscriber that
// falls behind misses updates rather than blocking the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Dashboard]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Dashboard]struct{})}
}

// Subscribe returns a channel of dashboards for gameID and a cancel func
// that must be called to release it.
func (b *Broker) Subscribe(gameID string) (<-chan Dashboard, func()) {
	ch := make(chan Dashboard, subscriberBuffer)
	b.mu.Lock()
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[chan Dashboard]struct{})
	}
	b.subs[gameID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[gameID], ch)
			if len(b.subs[gameID]) == 0 {
				delete(b.subs, gameID)
			}
			close(ch)
		})
	}
}

func (b *Broker) Publish(d Dashboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[d.GameID] {
		select {
		case ch <- d:
		default:
		}
	}
}

func (b *Broker) Subscribers(gameID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[gameID])
}
