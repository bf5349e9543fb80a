package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts between requests.
type Store interface {
	Load(ctx context.Context, customerID uint) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, customerID uint) error
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[uint]Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uint]Cart)}
}

func (s *MemoryStore) Load(_ context.Context, customerID uint) (Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[customerID]
	if !ok {
		return Cart{CustomerID: customerID}, nil
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.CustomerID] = c.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, customerID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, customerID)
	return nil
}

// RedisStore keeps one JSON document per customer with a sliding TTL.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, TTL: ttl}
}

func (s *RedisStore) key(customerID uint) string {
	return "cart:" + strconv.FormatUint(uint64(customerID), 10)
}

func (s *RedisStore) Load(ctx context.Context, customerID uint) (Cart, error) {
	raw, err := s.Client.Get(ctx, s.key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{CustomerID: customerID}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	c.CustomerID = customerID
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.Client.Set(ctx, s.key(c.CustomerID), payload, s.TTL).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, customerID uint) error {
	if err := s.Client.Del(ctx, s.key(customerID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
