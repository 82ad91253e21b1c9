package app

import (
	"context"
	"errors"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/sequence"
	"go.uber.org/zap"
)

type ReaperRepository interface {
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	GetResources(ctx context.Context, eventID string, ids []string) ([]domain.Resource, error)
	GetEntry(ctx context.Context, entryID string) (domain.WaitlistEntry, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
}

// Reaper returns the seats of lapsed holds and offers to the pool.
type Reaper struct {
	repo      ReaperRepository
	clock     clock.Clock
	log       *zap.Logger
	publisher ReleasePublisher
	reconcile ReleaseReconciler
	seq       *sequence.Sequencer
	policy    WaitlistPolicy
	interval  time.Duration
	batch     int
}

const (
	defaultReaperInterval = 5 * time.Second
	defaultReaperBatch    = 100
)

type ReaperOption func(*Reaper)

func WithReaperInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithReaperBatch(n int) ReaperOption {
	return func(r *Reaper) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithReconciler requeues stored release signals on every tick, so a
// cascade that failed or was cut short by a restart is retried.
func WithReconciler(rc ReleaseReconciler) ReaperOption {
	return func(r *Reaper) {
		r.reconcile = rc
	}
}

func NewReaper(
	repo ReaperRepository,
	clk clock.Clock,
	log *zap.Logger,
	publisher ReleasePublisher,
	seq *sequence.Sequencer,
	policy WaitlistPolicy,
	opts ...ReaperOption,
) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reaper{
		repo:      repo,
		clock:     clk,
		log:       log,
		publisher: publisher,
		seq:       seq,
		policy:    policy.normalized(),
		interval:  defaultReaperInterval,
		batch:     defaultReaperBatch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the reaper until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	n, err := r.ReapExpired(ctx)
	if err != nil {
		r.log.Error("failed to reap expired holds", zap.Error(err))
	} else if n > 0 {
		r.log.Info("expired holds reaped", zap.Int("count", n))
	}

	if r.reconcile == nil {
		return
	}
	if _, err := r.reconcile.Reconcile(ctx); err != nil {
		r.log.Error("failed to reconcile pending releases", zap.Error(err))
	}
}

// ReapExpired expires one batch of lapsed holds and returns how many it
// reclaimed. A hold that loses a race is left for the next tick.
func (r *Reaper) ReapExpired(ctx context.Context) (int, error) {
	now := r.clock.Now()
	holds, err := r.repo.ListExpiredHolds(ctx, now, r.batch)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, h := range holds {
		if ctx.Err() != nil {
			return reaped, ctx.Err()
		}
		ok, err := r.expire(ctx, h.ID, now)
		if err != nil {
			r.log.Warn("hold not reaped, retrying next tick",
				zap.String("hold_id", h.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			reaped++
		}
	}
	return reaped, nil
}

// ExpireHold reclaims a single hold if its TTL has elapsed.
func (r *Reaper) ExpireHold(ctx context.Context, holdID string) (bool, error) {
	return r.expire(ctx, holdID, r.clock.Now())
}

func (r *Reaper) expire(ctx context.Context, holdID string, now time.Time) (bool, error) {
	hold, err := r.repo.GetHold(ctx, holdID)
	if err != nil {
		return false, err
	}
	if hold.Terminal() || !hold.ExpiredAt(now) {
		return false, nil
	}

	resources, err := r.repo.GetResources(ctx, hold.EventID, hold.ResourceIDs)
	if err != nil {
		return false, err
	}
	cs, freed := reclaim(hold, resources, domain.HoldStatusExpired)

	offer := false
	if hold.IsOffer() {
		entry, err := r.repo.GetEntry(ctx, hold.EntryID)
		if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
			return false, err
		}
		if err == nil && entry.Status == domain.WaitlistStatusOffered && entry.HoldID == hold.ID {
			cs.PutEntry(lapseOffer(entry, r.policy, now, r.seq))
			offer = true
		}
	}

	var released domain.Released
	if offer && len(freed) > 0 {
		released = releasedSignal(hold.EventID, freed, true, now)
		cs.PutRelease(released)
	}
	if err := r.repo.Commit(ctx, cs); err != nil {
		return false, err
	}

	r.log.Info("hold expired",
		zap.String("hold_id", hold.ID),
		zap.String("event_id", hold.EventID),
		zap.Bool("offer", offer),
		zap.Int("freed", len(freed)),
	)

	// Plain holds never produced an allocation, so nothing cascades.
	if released.ID != "" && r.publisher != nil {
		released.Version++
		r.publisher.Publish(ctx, released)
	}
	return true, nil
}
