package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisNotifier makes offers visible to requester-facing clients. Each offer
// is stored under offer:<entry> until it lapses and announced on the
// requester's channel.
type RedisNotifier struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisNotifier)

func WithPrefix(prefix string) RedisOption {
	return func(n *RedisNotifier) {
		n.prefix = strings.Trim(prefix, ":")
	}
}

// WithNow sets the time source used to compute key TTLs.
func WithNow(now func() time.Time) RedisOption {
	return func(n *RedisNotifier) { n.now = now }
}

func NewRedisNotifier(rdb *redis.Client, opts ...RedisOption) *RedisNotifier {
	n := &RedisNotifier{
		rdb:    rdb,
		prefix: "seats",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type offerMessage struct {
	EntryID     string    `json:"entry_id"`
	EventID     string    `json:"event_id"`
	HoldID      string    `json:"hold_id"`
	ResourceIDs []string  `json:"resource_ids"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (n *RedisNotifier) OfferKey(entryID string) string {
	return n.prefix + ":offer:" + entryID
}

func (n *RedisNotifier) Channel(requesterID string) string {
	return n.prefix + ":offers:" + requesterID
}

func (n *RedisNotifier) OfferExtended(ctx context.Context, ev domain.OfferExtended) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	ttl := ev.ExpiresAt.Sub(n.now())
	if ttl <= 0 {
		return nil
	}
	body, err := json.Marshal(offerMessage{
		EntryID:     ev.EntryID,
		EventID:     ev.EventID,
		HoldID:      ev.HoldID,
		ResourceIDs: ev.ResourceIDs,
		ExpiresAt:   ev.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode offer: %w", err)
	}

	pipe := n.rdb.TxPipeline()
	pipe.Set(ctx, n.OfferKey(ev.EntryID), body, ttl)
	pipe.Publish(ctx, n.Channel(ev.RequesterID), body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish offer %s: %w", ev.EntryID, err)
	}
	return nil
}

// Released bumps a per-event counter of released seats.
func (n *RedisNotifier) Released(ctx context.Context, ev domain.Released) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	key := n.prefix + ":released:" + ev.EventID
	pipe := n.rdb.Pipeline()
	pipe.IncrBy(ctx, key, int64(ev.Count))
	pipe.Expire(ctx, key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}
