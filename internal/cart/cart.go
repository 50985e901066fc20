// Package cart holds the ephemeral cart state for a (stock, terminal)
// pair. Carts are working state only: a successful order commit clears
// them, and losing one is never a data-integrity problem.
package cart

import (
	"context"
	"sync"
	"time"

	"tokoerp/backend/internal/domain"
)

type Store interface {
	Get(ctx context.Context, stockID, terminalID string) (*domain.Cart, bool, error)
	Put(ctx context.Context, cart domain.Cart, ttl time.Duration) error
	Clear(ctx context.Context, stockID, terminalID string) error
}

// MemoryStore is the fallback when Redis is unavailable. Entries never
// expire; acceptable for dev and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]domain.Cart)}
}

func cartKey(stockID, terminalID string) string {
	return "cart:" + stockID + ":" + terminalID
}

func (m *MemoryStore) Get(_ context.Context, stockID, terminalID string) (*domain.Cart, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.carts[cartKey(stockID, terminalID)]
	if !ok {
		return nil, false, nil
	}
	found := c
	return &found, true, nil
}

func (m *MemoryStore) Put(_ context.Context, cart domain.Cart, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart.UpdatedAt = time.Now().UTC()
	m.carts[cartKey(cart.StockID, cart.TerminalID)] = cart
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, stockID, terminalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, cartKey(stockID, terminalID))
	return nil
}
