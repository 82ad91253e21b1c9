package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"go.uber.org/zap"
)

type HoldRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	GetResources(ctx context.Context, eventID string, ids []string) ([]domain.Resource, error)
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
}

type HoldService struct {
	repo      HoldRepository
	clock     clock.Clock
	log       *zap.Logger
	holdTTL   time.Duration
	maxTTL    time.Duration
	reclaimer HoldReclaimer
}

const (
	defaultHoldTTL = 15 * time.Minute
	defaultMaxTTL  = time.Hour
)

func NewHoldService(repo HoldRepository, clk clock.Clock, log *zap.Logger, opts ...HoldServiceOption) *HoldService {
	if log == nil {
		log = zap.NewNop()
	}
	svc := &HoldService{
		repo:    repo,
		clock:   clk,
		log:     log,
		holdTTL: defaultHoldTTL,
		maxTTL:  defaultMaxTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithMaxHoldTTL caps the TTL a caller may request.
func WithMaxHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.maxTTL = d
		}
	}
}

// WithReclaimer lets Acquire reclaim stale holds on the requested seats
// instead of waiting for the next reaper tick.
func WithReclaimer(r HoldReclaimer) HoldServiceOption {
	return func(s *HoldService) {
		s.reclaimer = r
	}
}

type AcquireInput struct {
	EventID     string
	ResourceIDs []string
	RequesterID string
	TTL         time.Duration
}

// Acquire holds every requested seat or none of them.
func (s *HoldService) Acquire(ctx context.Context, in AcquireInput) (domain.Hold, error) {
	if in.EventID == "" {
		return domain.Hold{}, domain.ErrInvalidID
	}
	if in.RequesterID == "" {
		return domain.Hold{}, domain.ErrRequesterRequired
	}
	ids, err := normalizeResourceIDs(in.ResourceIDs)
	if err != nil {
		return domain.Hold{}, err
	}
	ttl, err := s.ttl(in.TTL)
	if err != nil {
		return domain.Hold{}, err
	}

	if _, err := s.repo.GetEvent(ctx, in.EventID); err != nil {
		return domain.Hold{}, err
	}
	resources, err := s.repo.GetResources(ctx, in.EventID, ids)
	if err != nil {
		return domain.Hold{}, err
	}

	now := s.clock.Now()
	resources, err = s.reclaimStale(ctx, in.EventID, ids, resources, now)
	if err != nil {
		return domain.Hold{}, err
	}
	for _, r := range resources {
		if !r.IsFree() {
			s.log.Debug("acquire contended",
				zap.String("event_id", in.EventID),
				zap.String("resource_id", r.ID),
				zap.String("state", string(r.State)),
			)
			return domain.Hold{}, domain.ErrBusy
		}
	}

	hold := domain.Hold{
		ID:          newUUID(),
		EventID:     in.EventID,
		ResourceIDs: ids,
		RequesterID: in.RequesterID,
		Status:      domain.HoldStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	cs := domain.NewChangeset(in.EventID)
	for _, r := range resources {
		cs.Hold(r, hold.ID, hold.ExpiresAt)
	}
	cs.PutHold(hold)

	if err := s.repo.Commit(ctx, cs); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log.Debug("acquire lost race", zap.String("event_id", in.EventID))
			return domain.Hold{}, domain.ErrBusy
		}
		return domain.Hold{}, fmt.Errorf("commit hold: %w", err)
	}
	hold.Version++

	s.log.Info("hold acquired",
		zap.String("hold_id", hold.ID),
		zap.String("event_id", hold.EventID),
		zap.String("requester_id", hold.RequesterID),
		zap.Strings("resource_ids", hold.ResourceIDs),
		zap.Time("expires_at", hold.ExpiresAt),
	)
	return hold, nil
}

// Release frees an active hold. Releasing a terminal hold is a no-op.
func (s *HoldService) Release(ctx context.Context, holdID string) error {
	if holdID == "" {
		return domain.ErrInvalidID
	}
	released := false
	err := retryOnConflict(ctx, defaultConflictRetries, func() error {
		released = false
		hold, err := s.repo.GetHold(ctx, holdID)
		if err != nil {
			return err
		}
		if hold.Terminal() {
			return nil
		}
		if hold.IsOffer() {
			return domain.ErrOfferHold
		}

		resources, err := s.repo.GetResources(ctx, hold.EventID, hold.ResourceIDs)
		if err != nil {
			return err
		}
		cs, _ := reclaim(hold, resources, domain.HoldStatusReleased)
		if err := s.repo.Commit(ctx, cs); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return err
	}
	if released {
		s.log.Info("hold released", zap.String("hold_id", holdID))
	}
	return nil
}

func (s *HoldService) ttl(requested time.Duration) (time.Duration, error) {
	if requested == 0 {
		return s.holdTTL, nil
	}
	if requested < 0 || (s.maxTTL > 0 && requested > s.maxTTL) {
		return 0, domain.ErrInvalidTTL
	}
	return requested, nil
}

// reclaimStale expires holds whose TTL has elapsed on any of the requested
// seats and re-reads them.
func (s *HoldService) reclaimStale(ctx context.Context, eventID string, ids []string, resources []domain.Resource, now time.Time) ([]domain.Resource, error) {
	if s.reclaimer == nil {
		return resources, nil
	}
	reclaimed := false
	seen := make(map[string]struct{})
	for _, r := range resources {
		if r.State != domain.ResourceStateHeld || r.HoldExpiry.After(now) {
			continue
		}
		if _, ok := seen[r.HolderToken]; ok {
			continue
		}
		seen[r.HolderToken] = struct{}{}
		ok, err := s.reclaimer.ExpireHold(ctx, r.HolderToken)
		if err != nil {
			s.log.Warn("lazy reclaim failed",
				zap.String("hold_id", r.HolderToken),
				zap.Error(err),
			)
			continue
		}
		reclaimed = reclaimed || ok
	}
	if !reclaimed {
		return resources, nil
	}
	return s.repo.GetResources(ctx, eventID, ids)
}

func normalizeResourceIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyResourceSet
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, domain.ErrInvalidID
		}
		if _, ok := seen[id]; ok {
			return nil, domain.ErrDuplicateResource
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
