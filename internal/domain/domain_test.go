package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeatIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"1", "2", "3"}, SeatIDs(3))
	assert.Empty(t, SeatIDs(0))
}

func TestHold_ExpiredAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := Hold{Status: HoldStatusActive, ExpiresAt: now}

	assert.False(t, h.ExpiredAt(now.Add(-time.Nanosecond)))
	assert.True(t, h.ExpiredAt(now))
	assert.False(t, h.Terminal())
	assert.False(t, h.IsOffer())

	h.Status = HoldStatusReleased
	h.EntryID = "w1"
	assert.True(t, h.Terminal())
	assert.True(t, h.IsOffer())
}

func TestResource_Ownership(t *testing.T) {
	t.Parallel()

	held := Resource{ID: "1", State: ResourceStateHeld, HolderToken: "h1"}
	assert.True(t, held.HeldBy("h1"))
	assert.False(t, held.HeldBy("h2"))
	assert.False(t, held.AllocatedTo("h1"))
	assert.False(t, held.IsFree())

	allocated := Resource{ID: "2", State: ResourceStateAllocated, HolderToken: "h1"}
	assert.True(t, allocated.AllocatedTo("h1"))
	assert.False(t, allocated.HeldBy("h1"))
}

func TestCountStates(t *testing.T) {
	t.Parallel()

	got := CountStates("e1", []Resource{
		{State: ResourceStateFree},
		{State: ResourceStateFree},
		{State: ResourceStateHeld},
		{State: ResourceStateAllocated},
	})
	assert.Equal(t, Availability{EventID: "e1", PoolSize: 4, Free: 2, Held: 1, Allocated: 1}, got)
}

func TestWaitlistEntry_Before(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := WaitlistEntry{EnqueuedAt: now, Seq: 2}
	b := WaitlistEntry{EnqueuedAt: now, Seq: 3}
	c := WaitlistEntry{EnqueuedAt: now.Add(-time.Second), Seq: 9}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.True(t, c.Before(a))
}

func TestChangeset(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC)
	r := Resource{ID: "1", State: ResourceStateFree, Version: 4}

	cs := NewChangeset("e1")
	assert.True(t, cs.Empty())

	cs.Hold(r, "h1", expiry)
	held := Resource{ID: "1", State: ResourceStateHeld, HolderToken: "h1", Version: 5}
	cs.Allocate(held).Free(held)

	assert.False(t, cs.Empty())
	assert.Equal(t, []ResourceUpdate{
		{ResourceID: "1", ExpectedVersion: 4, State: ResourceStateHeld, HolderToken: "h1", HoldExpiry: expiry},
		{ResourceID: "1", ExpectedVersion: 5, State: ResourceStateAllocated, HolderToken: "h1"},
		{ResourceID: "1", ExpectedVersion: 5, State: ResourceStateFree},
	}, cs.Resources)
}
