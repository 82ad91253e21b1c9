package app

import (
	"context"
	"fmt"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"go.uber.org/zap"
)

type BookingRepository interface {
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	GetResources(ctx context.Context, eventID string, ids []string) ([]domain.Resource, error)
	GetAllocationByHold(ctx context.Context, holdID string) (*domain.Allocation, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
}

// BookingService turns active holds into allocations.
type BookingService struct {
	repo      BookingRepository
	clock     clock.Clock
	log       *zap.Logger
	reclaimer HoldReclaimer
}

func NewBookingService(repo BookingRepository, clk clock.Clock, log *zap.Logger, reclaimer HoldReclaimer) *BookingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		clock:     clk,
		log:       log,
		reclaimer: reclaimer,
	}
}

type ConfirmResult struct {
	Allocation domain.Allocation
	Created    bool
}

// Confirm allocates the seats of an active hold. Confirming an already
// confirmed hold returns the existing allocation with Created=false.
func (s *BookingService) Confirm(ctx context.Context, holdID string) (ConfirmResult, error) {
	if holdID == "" {
		return ConfirmResult{}, domain.ErrInvalidID
	}
	var result ConfirmResult
	err := retryOnConflict(ctx, defaultConflictRetries, func() error {
		hold, err := s.repo.GetHold(ctx, holdID)
		if err != nil {
			return err
		}
		if hold.IsOffer() {
			return domain.ErrOfferHold
		}
		result, err = s.finalize(ctx, hold, nil)
		return err
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return result, nil
}

// finalize confirms hold in one changeset; extend may add writes that must
// commit together with the confirmation.
func (s *BookingService) finalize(ctx context.Context, hold domain.Hold, extend func(cs *domain.Changeset)) (ConfirmResult, error) {
	switch hold.Status {
	case domain.HoldStatusConfirmed:
		existing, err := s.existing(ctx, hold.ID)
		if err != nil {
			return ConfirmResult{}, err
		}
		return ConfirmResult{Allocation: existing, Created: false}, nil
	case domain.HoldStatusExpired, domain.HoldStatusReleased:
		return ConfirmResult{}, domain.ErrExpired
	}

	now := s.clock.Now()
	if hold.ExpiredAt(now) {
		s.reclaim(ctx, hold.ID)
		return ConfirmResult{}, domain.ErrExpired
	}

	resources, err := s.repo.GetResources(ctx, hold.EventID, hold.ResourceIDs)
	if err != nil {
		return ConfirmResult{}, err
	}
	for _, r := range resources {
		if !r.HeldBy(hold.ID) {
			return ConfirmResult{}, domain.ErrExpired
		}
	}

	alloc := domain.Allocation{
		ID:          newUUID(),
		HoldID:      hold.ID,
		EventID:     hold.EventID,
		ResourceIDs: hold.ResourceIDs,
		RequesterID: hold.RequesterID,
		Status:      domain.AllocationStatusActive,
		ConfirmedAt: now,
	}

	cs := domain.NewChangeset(hold.EventID)
	for _, r := range resources {
		cs.Allocate(r)
	}
	hold.Status = domain.HoldStatusConfirmed
	cs.PutHold(hold)
	cs.PutAllocation(alloc)
	if extend != nil {
		extend(cs)
	}
	if err := s.repo.Commit(ctx, cs); err != nil {
		return ConfirmResult{}, err
	}
	alloc.Version++

	s.log.Info("hold confirmed",
		zap.String("hold_id", hold.ID),
		zap.String("allocation_id", alloc.ID),
		zap.String("event_id", alloc.EventID),
		zap.Strings("resource_ids", alloc.ResourceIDs),
	)
	return ConfirmResult{Allocation: alloc, Created: true}, nil
}

func (s *BookingService) existing(ctx context.Context, holdID string) (domain.Allocation, error) {
	alloc, err := s.repo.GetAllocationByHold(ctx, holdID)
	if err != nil {
		return domain.Allocation{}, err
	}
	if alloc == nil {
		s.log.Error("confirmed hold without allocation", zap.String("hold_id", holdID))
		return domain.Allocation{}, fmt.Errorf("%w: confirmed hold %s has no allocation", domain.ErrInvariantViolation, holdID)
	}
	return *alloc, nil
}

func (s *BookingService) reclaim(ctx context.Context, holdID string) {
	if s.reclaimer == nil {
		return
	}
	if _, err := s.reclaimer.ExpireHold(ctx, holdID); err != nil {
		s.log.Warn("lazy reclaim failed", zap.String("hold_id", holdID), zap.Error(err))
	}
}
