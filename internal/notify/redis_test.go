package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, now time.Time) (*RedisNotifier, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisNotifier(rdb, WithPrefix("test:"), WithNow(func() time.Time { return now })), mr, rdb
}

func TestRedisNotifier_OfferExtended(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	n, mr, rdb := newTestNotifier(t, now)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, n.Channel("bob"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev := domain.OfferExtended{
		EntryID:     "en-1",
		EventID:     "ev-1",
		RequesterID: "bob",
		HoldID:      "h-1",
		ResourceIDs: []string{"3"},
		ExpiresAt:   now.Add(2 * time.Minute),
	}
	require.NoError(t, n.OfferExtended(ctx, ev))

	assert.Equal(t, "test:offer:en-1", n.OfferKey("en-1"))
	assert.True(t, mr.Exists("test:offer:en-1"))
	assert.Equal(t, 2*time.Minute, mr.TTL("test:offer:en-1"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got offerMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "h-1", got.HoldID)
	assert.Equal(t, []string{"3"}, got.ResourceIDs)

	mr.FastForward(3 * time.Minute)
	assert.False(t, mr.Exists("test:offer:en-1"))
}

func TestRedisNotifier_SkipsLapsedOffer(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	n, mr, _ := newTestNotifier(t, now)

	err := n.OfferExtended(context.Background(), domain.OfferExtended{EntryID: "en-1", RequesterID: "bob", ExpiresAt: now})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:offer:en-1"))
}

func TestRedisNotifier_ReleasedCounts(t *testing.T) {
	n, mr, _ := newTestNotifier(t, time.Now())
	ctx := context.Background()

	require.NoError(t, n.Released(ctx, domain.Released{EventID: "ev-1", Count: 2}))
	require.NoError(t, n.Released(ctx, domain.Released{EventID: "ev-1", Count: 1}))

	v, err := mr.Get("test:released:ev-1")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestRedisNotifier_NilClientIsNoop(t *testing.T) {
	n := NewRedisNotifier(nil)
	assert.NoError(t, n.OfferExtended(context.Background(), domain.OfferExtended{ExpiresAt: time.Now().Add(time.Hour)}))
	assert.NoError(t, n.Released(context.Background(), domain.Released{}))
}
