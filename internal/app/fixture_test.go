package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/sequence"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	clock    *clock.Manual
	seq      *sequence.Sequencer
	policy   WaitlistPolicy
	notes    *recorder
	cascader *Cascader
	reaper   *Reaper
	holds    *HoldService
	booking  *BookingService
	cancel   *CancellationService
	waitlist *WaitlistService
	admin    *AdminService
	eventID  string
}

func newFixture(t *testing.T, poolSize int, tweak ...func(*WaitlistPolicy)) *fixture {
	t.Helper()

	policy := DefaultWaitlistPolicy()
	for _, fn := range tweak {
		fn(&policy)
	}

	f := &fixture{
		ctx:    context.Background(),
		store:  memory.NewStore(),
		clock:  clock.NewManual(t0),
		seq:    sequence.New(0),
		policy: policy,
		notes:  &recorder{},
	}
	f.cascader = NewCascader(f.store, f.clock, nil, policy,
		WithOfferNotifiers(f.notes),
		WithReleaseObservers(f.notes),
	)
	f.reaper = NewReaper(f.store, f.clock, nil, f.cascader, f.seq, policy)
	f.holds = NewHoldService(f.store, f.clock, nil, WithReclaimer(f.reaper))
	f.booking = NewBookingService(f.store, f.clock, nil, f.reaper)
	f.cancel = NewCancellationService(f.store, f.clock, nil, f.cascader)
	f.waitlist = NewWaitlistService(f.store, f.clock, nil, f.booking, f.cascader, f.seq)
	f.admin = NewAdminService(f.store, f.clock, nil)

	event, err := f.admin.CreateEvent(f.ctx, CreateEventInput{Name: "Concert", PoolSize: poolSize})
	require.NoError(t, err)
	f.eventID = event.ID
	return f
}

func (f *fixture) acquire(t *testing.T, requester string, ids ...string) domain.Hold {
	t.Helper()
	hold, err := f.holds.Acquire(f.ctx, AcquireInput{EventID: f.eventID, ResourceIDs: ids, RequesterID: requester})
	require.NoError(t, err)
	return hold
}

// allocate acquires and confirms in one step.
func (f *fixture) allocate(t *testing.T, requester string, ids ...string) domain.Allocation {
	t.Helper()
	hold := f.acquire(t, requester, ids...)
	res, err := f.booking.Confirm(f.ctx, hold.ID)
	require.NoError(t, err)
	require.True(t, res.Created)
	return res.Allocation
}

func (f *fixture) enqueue(t *testing.T, requester string, count int) domain.WaitlistEntry {
	t.Helper()
	entry, err := f.waitlist.Enqueue(f.ctx, EnqueueInput{EventID: f.eventID, RequesterID: requester, ResourceCount: count})
	require.NoError(t, err)
	return entry
}

func (f *fixture) entry(t *testing.T, id string) domain.WaitlistEntry {
	t.Helper()
	entry, err := f.store.GetEntry(f.ctx, id)
	require.NoError(t, err)
	return entry
}

func (f *fixture) resources(t *testing.T, ids ...string) []domain.Resource {
	t.Helper()
	if len(ids) == 0 {
		all, err := f.store.ListResources(f.ctx, f.eventID)
		require.NoError(t, err)
		return all
	}
	rs, err := f.store.GetResources(f.ctx, f.eventID, ids)
	require.NoError(t, err)
	return rs
}

func (f *fixture) availability(t *testing.T) domain.Availability {
	t.Helper()
	a, err := f.admin.Availability(f.ctx, f.eventID)
	require.NoError(t, err)
	return a
}

// recorder collects notifications and can be told to fail them.
type recorder struct {
	mu       sync.Mutex
	offers   []domain.OfferExtended
	releases []domain.Released
	fail     bool
}

func (r *recorder) OfferExtended(_ context.Context, ev domain.OfferExtended) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, ev)
	if r.fail {
		return errors.New("notifier down")
	}
	return nil
}

func (r *recorder) Released(_ context.Context, ev domain.Released) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases = append(r.releases, ev)
	if r.fail {
		return errors.New("notifier down")
	}
	return nil
}

func (r *recorder) Offers() []domain.OfferExtended {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OfferExtended(nil), r.offers...)
}

func (r *recorder) Releases() []domain.Released {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Released(nil), r.releases...)
}

// flakyStore loses the version check on its first failures commits.
type flakyStore struct {
	*memory.Store
	failures atomic.Int32
	commits  atomic.Int32
}

func (s *flakyStore) Commit(ctx context.Context, cs *domain.Changeset) error {
	s.commits.Add(1)
	if s.failures.Add(-1) >= 0 {
		return domain.ErrConflict
	}
	return s.Store.Commit(ctx, cs)
}

// flakyEntries fails its first failures waitlist listings.
type flakyEntries struct {
	*memory.Store
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *flakyEntries) ListEntries(ctx context.Context, eventID string, status domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListEntries(ctx, eventID, status)
}

// seatThief lets a walk-in grab one seat right before the first offer
// commit, so that commit loses its version check.
type seatThief struct {
	*memory.Store
	seat   string
	stolen atomic.Bool
}

func (s *seatThief) Commit(ctx context.Context, cs *domain.Changeset) error {
	if len(cs.Entries) > 0 && cs.Entries[0].Status == domain.WaitlistStatusOffered && s.stolen.CompareAndSwap(false, true) {
		rs, err := s.Store.GetResources(ctx, cs.EventID, []string{s.seat})
		if err != nil {
			return err
		}
		steal := domain.NewChangeset(cs.EventID).Hold(rs[0], "walk-in", t0.Add(time.Hour))
		if err := s.Store.Commit(ctx, steal); err != nil {
			return err
		}
	}
	return s.Store.Commit(ctx, cs)
}

func (f *fixture) pendingReleases(t *testing.T) []domain.Released {
	t.Helper()
	pending, err := f.store.ListPendingReleases(f.ctx, 0)
	require.NoError(t, err)
	return pending
}
