package cart

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"velora_back_end/internal/models"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore garde le dernier état de panier confirmé par le backend
// pour une session. Ce n'est pas une source de vérité, juste le
// "last-known-good" qu'on rend tant qu'une mutation n'a pas abouti.
type SnapshotStore interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Set(ctx context.Context, userID string, cart *models.Cart) error
	Delete(ctx context.Context, userID string) error
}

const snapshotTTL = 30 * 24 * time.Hour

// RedisStore stocke les snapshots sous cart:<userID> (30 jours).
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(userID string) string {
	return "cart:" + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil || data == "" {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cart models.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), data, snapshotTTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

// MemoryStore sert aux tests.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*models.Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*models.Cart)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[userID].Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = cart.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
