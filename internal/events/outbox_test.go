package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemOutbox(t *testing.T, fs vfs.FS) *Outbox {
	t.Helper()
	o, err := OpenOutbox("outbox", nil, WithFS(fs))
	require.NoError(t, err)
	return o
}

func TestOutbox_AppendScanAck(t *testing.T) {
	o := openMemOutbox(t, vfs.NewMem())
	defer o.Close()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, o.Released(ctx, domain.Released{EventID: "ev-1", ResourceIDs: []string{"1", "2"}, Count: 2, ReleasedAt: now}))
	require.NoError(t, o.OfferExtended(ctx, domain.OfferExtended{EntryID: "en-1", EventID: "ev-1", RequesterID: "bob", HoldID: "h-1", ResourceIDs: []string{"1"}, ExpiresAt: now.Add(time.Minute), ExtendedAt: now}))

	var got []Envelope
	require.NoError(t, o.ScanPending(0, func(env Envelope) error {
		got = append(got, env)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, KindReleased, got[0].Kind)
	assert.Equal(t, "ev-1", got[0].Key)
	assert.Equal(t, KindOfferExtended, got[1].Kind)
	assert.True(t, got[0].OccurredAt.Equal(now))
	assert.True(t, got[1].OccurredAt.Equal(now), "offer is stamped with its commit time")

	var offer offerPayload
	require.NoError(t, json.Unmarshal(got[1].Payload, &offer))
	assert.Equal(t, "bob", offer.RequesterID)
	assert.Equal(t, []string{"1"}, offer.ResourceIDs)

	require.NoError(t, o.Ack(got[0].Seq))
	n, err := o.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutbox_SequenceSurvivesReopen(t *testing.T) {
	fs := vfs.NewMem()
	ctx := context.Background()

	o := openMemOutbox(t, fs)
	for i := 0; i < 3; i++ {
		require.NoError(t, o.Released(ctx, domain.Released{EventID: "ev-1", Count: 1, ResourceIDs: []string{"1"}}))
	}
	require.NoError(t, o.Close())

	o = openMemOutbox(t, fs)
	defer o.Close()
	require.NoError(t, o.Released(ctx, domain.Released{EventID: "ev-1", Count: 1, ResourceIDs: []string{"1"}}))

	var seqs []uint64
	require.NoError(t, o.ScanPending(0, func(env Envelope) error {
		seqs = append(seqs, env.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3, 4}, seqs)
}

func TestOutbox_ScanStopsOnError(t *testing.T) {
	o := openMemOutbox(t, vfs.NewMem())
	defer o.Close()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, o.Released(ctx, domain.Released{EventID: "ev-1", Count: 1}))
	}

	stop := errors.New("stop")
	calls := 0
	err := o.ScanPending(0, func(Envelope) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
