package app

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldService_Acquire(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)

	hold := f.acquire(t, "alice", "1", "2")
	assert.Equal(t, domain.HoldStatusActive, hold.Status)
	assert.Equal(t, t0.Add(defaultHoldTTL), hold.ExpiresAt)
	assert.Equal(t, []string{"1", "2"}, hold.ResourceIDs)
	assert.False(t, hold.IsOffer())

	for _, r := range f.resources(t, "1", "2") {
		assert.True(t, r.HeldBy(hold.ID))
		assert.Equal(t, hold.ExpiresAt, r.HoldExpiry)
	}
	assert.Equal(t, domain.Availability{EventID: f.eventID, PoolSize: 5, Free: 3, Held: 2}, f.availability(t))
}

func TestHoldService_AcquireBusyLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)
	f.acquire(t, "alice", "1", "2")
	before := f.resources(t, "3")[0]

	_, err := f.holds.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: []string{"2", "3"}, RequesterID: "bob"})
	require.ErrorIs(t, err, domain.ErrBusy)

	after := f.resources(t, "3")[0]
	assert.True(t, after.IsFree())
	assert.Equal(t, before.Version, after.Version)
}

func TestHoldService_AcquireValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)

	tests := []struct {
		name string
		in   AcquireInput
		want error
	}{
		{"missing event", AcquireInput{ResourceIDs: []string{"1"}, RequesterID: "a"}, domain.ErrInvalidID},
		{"missing requester", AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}}, domain.ErrRequesterRequired},
		{"empty set", AcquireInput{EventID: f.eventID, RequesterID: "a"}, domain.ErrEmptyResourceSet},
		{"duplicate seat", AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1", "1"}, RequesterID: "a"}, domain.ErrDuplicateResource},
		{"blank seat", AcquireInput{EventID: f.eventID, ResourceIDs: []string{""}, RequesterID: "a"}, domain.ErrInvalidID},
		{"negative ttl", AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}, RequesterID: "a", TTL: -time.Second}, domain.ErrInvalidTTL},
		{"ttl above max", AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}, RequesterID: "a", TTL: 2 * time.Hour}, domain.ErrInvalidTTL},
		{"unknown seat", AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1", "9"}, RequesterID: "a"}, domain.ErrResourceNotFound},
		{"unknown event", AcquireInput{EventID: "nope", ResourceIDs: []string{"1"}, RequesterID: "a"}, domain.ErrEventNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.holds.Acquire(f.ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 3, f.availability(t).Free)
}

func TestHoldService_AcquireCustomTTL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	hold, err := f.holds.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}, RequesterID: "a", TTL: 90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(90*time.Second), hold.ExpiresAt)
}

func TestHoldService_AcquireReclaimsLapsedHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2)
	stale, err := f.holds.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}, RequesterID: "alice", TTL: time.Minute})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	fresh := f.acquire(t, "bob", "1", "2")
	assert.True(t, f.resources(t, "1")[0].HeldBy(fresh.ID))

	old, err := f.store.GetHold(f.ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusExpired, old.Status)
}

func TestHoldService_AcquireLostRaceIsBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2)
	flaky := &flakyStore{Store: f.store}
	flaky.failures.Store(1)
	svc := NewHoldService(flaky, f.clock, nil)

	_, err := svc.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}, RequesterID: "a"})
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, 2, f.availability(t).Free)
}

func TestHoldService_Release(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	hold := f.acquire(t, "alice", "1", "2")

	require.NoError(t, f.holds.Release(f.ctx, hold.ID))
	assert.Equal(t, 3, f.availability(t).Free)

	stored, err := f.store.GetHold(f.ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusReleased, stored.Status)

	// Terminal holds release as a no-op.
	require.NoError(t, f.holds.Release(f.ctx, hold.ID))
	assert.ErrorIs(t, f.holds.Release(f.ctx, "missing"), domain.ErrHoldNotFound)
	assert.ErrorIs(t, f.holds.Release(f.ctx, ""), domain.ErrInvalidID)

	// A plain release never reaches the waitlist.
	assert.Zero(t, f.cascader.Pending())
}

func TestHoldService_ReleaseRetriesConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	hold := f.acquire(t, "alice", "1")

	flaky := &flakyStore{Store: f.store}
	flaky.failures.Store(2)
	svc := NewHoldService(flaky, f.clock, nil)
	require.NoError(t, svc.Release(f.ctx, hold.ID))
	assert.Equal(t, int32(3), flaky.commits.Load())

	hold = f.acquire(t, "bob", "1")
	flaky.failures.Store(defaultConflictRetries)
	err := svc.Release(f.ctx, hold.ID)
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.True(t, f.resources(t, "1")[0].HeldBy(hold.ID))
}

func TestHoldService_ConcurrentAcquireSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)

	const contenders = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []domain.Hold
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hold, err := f.holds.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: []string{"1"}, RequesterID: fmt.Sprintf("r%d", i)})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrBusy)
				return
			}
			mu.Lock()
			wins = append(wins, hold)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.True(t, f.resources(t, "1")[0].HeldBy(wins[0].ID))
}

func TestHoldService_ConcurrentOverlappingSetsNeverOversell(t *testing.T) {
	t.Parallel()

	const seats = 10
	f := newFixture(t, seats)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []domain.Hold
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []string{fmt.Sprint(i%seats + 1), fmt.Sprint((i+3)%seats + 1)}
			hold, err := f.holds.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: ids, RequesterID: fmt.Sprintf("r%d", i)})
			if err != nil {
				return
			}
			mu.Lock()
			wins = append(wins, hold)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	owner := map[string]string{}
	for _, h := range wins {
		for _, id := range h.ResourceIDs {
			prev, taken := owner[id]
			require.False(t, taken, "seat %s held by %s and %s", id, prev, h.ID)
			owner[id] = h.ID
		}
	}
	for _, r := range f.resources(t) {
		if r.IsFree() {
			_, taken := owner[r.ID]
			assert.False(t, taken)
			continue
		}
		assert.Equal(t, owner[r.ID], r.HolderToken)
	}
}
