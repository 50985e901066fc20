package cart

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokoerp/backend/internal/domain"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStore{client: client}
}

func (c *RedisStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStore) Close() error {
	return c.client.Close()
}

func (c *RedisStore) Get(ctx context.Context, stockID, terminalID string) (*domain.Cart, bool, error) {
	val, err := c.client.Get(ctx, cartKey(stockID, terminalID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return nil, false, err
	}
	return &cart, true, nil
}

func (c *RedisStore) Put(ctx context.Context, cart domain.Cart, ttl time.Duration) error {
	cart.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cartKey(cart.StockID, cart.TerminalID), payload, ttl).Err()
}

func (c *RedisStore) Clear(ctx context.Context, stockID, terminalID string) error {
	return c.client.Del(ctx, cartKey(stockID, terminalID)).Err()
}
