package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	idempotencyKeyPrefix = "payments:event:"

	// defaultIdempotencyTTL bounds Redis memory; the durable table is the
	// authoritative gate so a key expiring early is harmless.
	defaultIdempotencyTTL = 72 * time.Hour
)

// IdempotencyStore short-circuits duplicate webhook deliveries before the
// database transaction.
type IdempotencyStore interface {
	// MarkIfNew records (paymentID, eventType) and reports whether it was
	// unseen. false means a duplicate delivery.
	MarkIfNew(ctx context.Context, paymentID string, eventType EventType) (bool, error)
	// Release forgets a mark so that a failed reconciliation can be retried
	// by the provider's redelivery.
	Release(ctx context.Context, paymentID string, eventType EventType) error
}

// RedisIdempotencyStore implements IdempotencyStore on Redis SETNX
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a store with the default TTL
func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		ttl:    defaultIdempotencyTTL,
	}
}

func idempotencyKey(paymentID string, eventType EventType) string {
	return fmt.Sprintf("%s%s:%s", idempotencyKeyPrefix, paymentID, eventType)
}

// MarkIfNew sets the key only when absent
func (s *RedisIdempotencyStore) MarkIfNew(ctx context.Context, paymentID string, eventType EventType) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKey(paymentID, eventType), 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event: %w", err)
	}
	return ok, nil
}

// Release deletes the key
func (s *RedisIdempotencyStore) Release(ctx context.Context, paymentID string, eventType EventType) error {
	if err := s.client.Del(ctx, idempotencyKey(paymentID, eventType)).Err(); err != nil {
		return fmt.Errorf("failed to release event mark: %w", err)
	}
	return nil
}
