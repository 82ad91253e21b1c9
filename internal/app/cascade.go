package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"go.uber.org/zap"
)

type CascadeRepository interface {
	ListEntries(ctx context.Context, eventID string, status domain.WaitlistStatus) ([]domain.WaitlistEntry, error)
	GetEntry(ctx context.Context, entryID string) (domain.WaitlistEntry, error)
	ListResources(ctx context.Context, eventID string) ([]domain.Resource, error)
	GetRelease(ctx context.Context, releaseID string) (domain.Released, error)
	ListPendingReleases(ctx context.Context, limit int) ([]domain.Released, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
}

const (
	maxCascadeAttempts = 3
	// maxOfferConflicts bounds how often one entry is retried within a pass.
	maxOfferConflicts = 3
	reconcileBatch    = 100
)

type cascadeItem struct {
	ev       domain.Released
	attempts int
}

// Cascader offers released seats to waiting entries. Release signals go
// through a FIFO queue; an offer lapsing during a pass only appends to it.
type Cascader struct {
	repo      CascadeRepository
	clock     clock.Clock
	log       *zap.Logger
	policy    WaitlistPolicy
	notifiers []OfferNotifier
	observers []ReleaseObserver

	mu    sync.Mutex
	queue []cascadeItem
	wake  chan struct{}

	drainMu sync.Mutex
}

type CascaderOption func(*Cascader)

// WithOfferNotifiers adds sinks for committed offers.
func WithOfferNotifiers(n ...OfferNotifier) CascaderOption {
	return func(c *Cascader) {
		c.notifiers = append(c.notifiers, n...)
	}
}

// WithReleaseObservers adds sinks that see every release signal.
func WithReleaseObservers(o ...ReleaseObserver) CascaderOption {
	return func(c *Cascader) {
		c.observers = append(c.observers, o...)
	}
}

func NewCascader(repo CascadeRepository, clk clock.Clock, log *zap.Logger, policy WaitlistPolicy, opts ...CascaderOption) *Cascader {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cascader{
		repo:   repo,
		clock:  clk,
		log:    log,
		policy: policy.normalized(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish queues a release signal that its producer has already stored. It
// never processes the signal itself.
func (c *Cascader) Publish(ctx context.Context, ev domain.Released) {
	for _, o := range c.observers {
		if err := o.Released(ctx, ev); err != nil {
			c.log.Warn("release observer failed", zap.String("event_id", ev.EventID), zap.Error(err))
		}
	}
	c.push(cascadeItem{ev: ev})
}

// Pending reports how many signals wait in the queue.
func (c *Cascader) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Reconcile queues every stored release that still has seats to offer and
// is not already queued. It picks up signals left behind by failed passes or
// by a restart, and returns how many it queued.
func (c *Cascader) Reconcile(ctx context.Context) (int, error) {
	pending, err := c.repo.ListPendingReleases(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	queued := make(map[string]struct{}, len(c.queue))
	for _, item := range c.queue {
		queued[item.ev.ID] = struct{}{}
	}
	c.mu.Unlock()

	n := 0
	for _, ev := range pending {
		if _, ok := queued[ev.ID]; ok {
			continue
		}
		c.push(cascadeItem{ev: ev})
		n++
	}
	if n > 0 {
		c.log.Info("pending releases requeued", zap.Int("count", n))
	}
	return n, nil
}

// Run drains the queue whenever a signal arrives, until ctx is cancelled.
// Releases stored before the worker started are queued first.
func (c *Cascader) Run(ctx context.Context) {
	c.log.Info("cascade worker started")
	if _, err := c.Reconcile(ctx); err != nil {
		c.log.Warn("reconcile pending releases", zap.Error(err))
	}
	c.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("cascade worker stopped")
			return
		case <-c.wake:
			c.Drain(ctx)
		}
	}
}

// Drain processes queued signals until the queue is empty and returns the
// number of offers extended. Only one drain runs at a time. A signal that
// keeps failing leaves the queue but stays pending in the store until the
// next Reconcile.
func (c *Cascader) Drain(ctx context.Context) int {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	offers := 0
	for ctx.Err() == nil {
		item, ok := c.pop()
		if !ok {
			break
		}
		n, err := c.cascade(ctx, item.ev.ID)
		offers += n
		if err == nil {
			continue
		}
		item.attempts++
		if item.attempts >= maxCascadeAttempts {
			c.log.Warn("cascade deferred to next reconcile",
				zap.String("release_id", item.ev.ID),
				zap.String("event_id", item.ev.EventID),
				zap.Int("attempts", item.attempts),
				zap.Error(err),
			)
			continue
		}
		c.log.Warn("cascade failed, requeued",
			zap.String("release_id", item.ev.ID),
			zap.String("event_id", item.ev.EventID),
			zap.Int("attempt", item.attempts),
			zap.Error(err),
		)
		c.push(item)
	}
	return offers
}

func (c *Cascader) push(item cascadeItem) {
	c.mu.Lock()
	c.queue = append(c.queue, item)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Cascader) pop() (cascadeItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return cascadeItem{}, false
	}
	item := c.queue[0]
	c.queue[0] = cascadeItem{}
	c.queue = c.queue[1:]
	return item, true
}

// cascade runs one pass for a stored release: waiting entries are scanned
// in priority order and each one that fits the remaining count gets an offer.
// Every offer consumes the signal in the same commit, and the pass ends by
// marking it done, so a retried pass never offers the same seats twice.
func (c *Cascader) cascade(ctx context.Context, releaseID string) (int, error) {
	sig, err := c.repo.GetRelease(ctx, releaseID)
	if err != nil {
		return 0, err
	}
	if !sig.Pending() {
		return 0, nil
	}

	entries, err := c.repo.ListEntries(ctx, sig.EventID, domain.WaitlistStatusWaiting)
	if err != nil {
		return 0, err
	}
	free, err := c.freeSeats(ctx, sig)
	if err != nil {
		return 0, err
	}

	now := c.clock.Now()
	offers, conflicts := 0, 0
	for i := 0; i < len(entries); {
		available := min(sig.Count, len(free))
		if available <= 0 {
			break
		}
		entry := entries[i]
		if entry.ResourceCount > available {
			if c.policy.Fairness == FairnessStrictFIFO {
				break
			}
			i++
			continue
		}

		offer, err := c.extendOffer(ctx, sig, entry, free[:entry.ResourceCount], now)
		if errors.Is(err, domain.ErrConflict) {
			// A seat, the entry or the signal moved. Re-read all three and
			// retry the same entry so nobody behind it jumps the queue.
			conflicts++
			if conflicts > maxOfferConflicts {
				return offers, fmt.Errorf("offer to entry %s: %w", entry.ID, err)
			}
			c.log.Debug("offer lost race", zap.String("entry_id", entry.ID), zap.Int("conflicts", conflicts))

			if sig, err = c.repo.GetRelease(ctx, sig.ID); err != nil {
				return offers, err
			}
			if !sig.Pending() {
				return offers, nil
			}
			if free, err = c.freeSeats(ctx, sig); err != nil {
				return offers, err
			}
			fresh, err := c.repo.GetEntry(ctx, entry.ID)
			if err != nil {
				return offers, err
			}
			if fresh.Status != domain.WaitlistStatusWaiting {
				i++
				conflicts = 0
				continue
			}
			entries[i] = fresh
			continue
		}
		if err != nil {
			return offers, err
		}

		sig.Count -= entry.ResourceCount
		sig.Version++
		free = free[entry.ResourceCount:]
		offers++
		conflicts = 0
		i++
		c.notify(ctx, offer)
	}

	sig.Status = domain.ReleaseStatusDone
	if err := c.repo.Commit(ctx, domain.NewChangeset(sig.EventID).PutRelease(sig)); err != nil {
		return offers, fmt.Errorf("settle release %s: %w", sig.ID, err)
	}
	return offers, nil
}

func (c *Cascader) freeSeats(ctx context.Context, sig domain.Released) ([]domain.Resource, error) {
	resources, err := c.repo.ListResources(ctx, sig.EventID)
	if err != nil {
		return nil, err
	}
	return freeCandidates(resources, sig.ResourceIDs), nil
}

// extendOffer holds seats for entry exactly like Acquire does, moves the
// entry to offered and takes the seats off sig, all in one commit.
func (c *Cascader) extendOffer(ctx context.Context, sig domain.Released, entry domain.WaitlistEntry, seats []domain.Resource, now time.Time) (domain.OfferExtended, error) {
	ids := make([]string, 0, len(seats))
	for _, r := range seats {
		ids = append(ids, r.ID)
	}
	hold := domain.Hold{
		ID:          newUUID(),
		EventID:     entry.EventID,
		ResourceIDs: ids,
		RequesterID: entry.RequesterID,
		EntryID:     entry.ID,
		Status:      domain.HoldStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.policy.OfferWindow),
	}

	cs := domain.NewChangeset(entry.EventID)
	for _, r := range seats {
		cs.Hold(r, hold.ID, hold.ExpiresAt)
	}
	cs.PutHold(hold)
	entry.Status = domain.WaitlistStatusOffered
	entry.HoldID = hold.ID
	entry.OfferExpiresAt = hold.ExpiresAt
	cs.PutEntry(entry)
	sig.Count -= len(seats)
	cs.PutRelease(sig)

	if err := c.repo.Commit(ctx, cs); err != nil {
		return domain.OfferExtended{}, err
	}
	return domain.OfferExtended{
		EntryID:     entry.ID,
		EventID:     entry.EventID,
		RequesterID: entry.RequesterID,
		HoldID:      hold.ID,
		ResourceIDs: ids,
		ExpiresAt:   hold.ExpiresAt,
		ExtendedAt:  now,
	}, nil
}

func (c *Cascader) notify(ctx context.Context, offer domain.OfferExtended) {
	c.log.Info("offer extended",
		zap.String("entry_id", offer.EntryID),
		zap.String("event_id", offer.EventID),
		zap.String("requester_id", offer.RequesterID),
		zap.Strings("resource_ids", offer.ResourceIDs),
		zap.Time("expires_at", offer.ExpiresAt),
	)
	for _, n := range c.notifiers {
		if err := n.OfferExtended(ctx, offer); err != nil {
			c.log.Warn("offer notification failed", zap.String("entry_id", offer.EntryID), zap.Error(err))
		}
	}
}

// freeCandidates lists free seats, the released ones first.
func freeCandidates(resources []domain.Resource, released []string) []domain.Resource {
	preferred := make(map[string]struct{}, len(released))
	for _, id := range released {
		preferred[id] = struct{}{}
	}
	first := make([]domain.Resource, 0, len(released))
	rest := make([]domain.Resource, 0, len(resources))
	for _, r := range resources {
		if !r.IsFree() {
			continue
		}
		if _, ok := preferred[r.ID]; ok {
			first = append(first, r)
			continue
		}
		rest = append(rest, r)
	}
	return append(first, rest...)
}
