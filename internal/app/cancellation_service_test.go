package app

import (
	"testing"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellationService_Cancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	alloc := f.allocate(t, "alice", "1", "2")

	freed, err := f.cancel.Cancel(f.ctx, alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, freed)
	assert.Equal(t, 3, f.availability(t).Free)

	stored, err := f.store.GetAllocation(f.ctx, alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationStatusCancelled, stored.Status)
	assert.Equal(t, t0, stored.CancelledAt)

	releases := f.notes.Releases()
	require.Len(t, releases, 1)
	assert.Equal(t, f.eventID, releases[0].EventID)
	assert.Equal(t, 2, releases[0].Count)
	assert.False(t, releases[0].Synthetic)
	assert.Equal(t, 1, f.cascader.Pending())

	// The signal is stored with the cancellation itself.
	pending := f.pendingReleases(t)
	require.Len(t, pending, 1)
	assert.Equal(t, releases[0].ID, pending[0].ID)
	assert.Equal(t, releases[0].Version, pending[0].Version)
}

func TestCancellationService_CancelTwiceIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	alloc := f.allocate(t, "alice", "1")

	_, err := f.cancel.Cancel(f.ctx, alloc.ID)
	require.NoError(t, err)

	freed, err := f.cancel.Cancel(f.ctx, alloc.ID)
	require.NoError(t, err)
	assert.Empty(t, freed)
	assert.Len(t, f.notes.Releases(), 1)
}

func TestCancellationService_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	_, err := f.cancel.Cancel(f.ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.cancel.Cancel(f.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAllocationNotFound)
}

func TestCancellationService_SeatNotOwned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	alloc := f.allocate(t, "alice", "1")

	// Free the seat behind the allocation's back.
	seat := f.resources(t, "1")[0]
	require.NoError(t, f.store.Commit(f.ctx, domain.NewChangeset(f.eventID).Free(seat)))

	_, err := f.cancel.Cancel(f.ctx, alloc.ID)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.Zero(t, f.cascader.Pending())
}
