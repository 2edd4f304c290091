package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/procurebot/procurement-backend/pkg/redis"
)

// Manager remembers which outbox events a consumer already handled so a row
// redelivered after a failed bookkeeping write does not notify twice.
// Keys follow the `proc:idempotency:evt:handled:<consumer>:<event_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that marks events as handled for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the event was already handled and
// otherwise marks it as handled.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete forgets the event so that a failed handler can run again.
func (m *Manager) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, eventID string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	parsed, err := uuid.Parse(eventID)
	if err != nil || parsed == uuid.Nil {
		return "", fmt.Errorf("event id %q is not a valid uuid", eventID)
	}
	scope := fmt.Sprintf("evt:handled:%s", consumer)
	return m.store.IdempotencyKey(scope, parsed.String()), nil
}
