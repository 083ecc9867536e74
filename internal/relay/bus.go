package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Completion est LE message échangé entre la popup de paiement et la
// page qui l'a ouverte. Types explicites, pas d'état partagé : les deux
// contextes sont des processus séparés.
type Completion struct {
	Type       string `json:"type"`
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_intent"`
}

const TypeCheckoutComplete = "checkout_complete"

// Bus transporte les messages de complétion. L'implémentation Redis
// fonctionne entre instances ; la mémoire sert aux tests.
type Bus interface {
	Publish(ctx context.Context, orderID string, msg Completion) error
	Subscribe(ctx context.Context, orderID string) (<-chan Completion, func(), error)
	ListenerCount(ctx context.Context, orderID string) (int, error)
}

func channelName(orderID string) string {
	return "checkout:" + orderID
}

// --- Redis ---

type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, orderID string, msg Completion) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelName(orderID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, orderID string) (<-chan Completion, func(), error) {
	pubsub := b.client.Subscribe(ctx, channelName(orderID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Completion, 1)
	go func() {
		defer close(out)
		for raw := range pubsub.Channel() {
			var msg Completion
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}
			select {
			case out <- msg:
			default:
			}
		}
	}()

	cancel := func() { pubsub.Close() }
	return out, cancel, nil
}

func (b *RedisBus) ListenerCount(ctx context.Context, orderID string) (int, error) {
	counts, err := b.client.PubSubNumSub(ctx, channelName(orderID)).Result()
	if err != nil {
		return 0, err
	}
	return int(counts[channelName(orderID)]), nil
}

// --- Mémoire (tests) ---

type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]chan Completion
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan Completion)}
}

func (b *MemoryBus) Publish(_ context.Context, orderID string, msg Completion) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[orderID] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, orderID string) (<-chan Completion, func(), error) {
	ch := make(chan Completion, 4)
	b.mu.Lock()
	b.subs[orderID] = append(b.subs[orderID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[orderID]
		for i, c := range subs {
			if c == ch {
				b.subs[orderID] = append(subs[:i], subs[i+1:]...)
				close(c)
				return
			}
		}
	}
	return ch, cancel, nil
}

func (b *MemoryBus) ListenerCount(_ context.Context, orderID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[orderID]), nil
}
