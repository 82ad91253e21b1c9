package app

import (
	"context"
	"fmt"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"go.uber.org/zap"
)

type CancellationRepository interface {
	GetAllocation(ctx context.Context, allocationID string) (domain.Allocation, error)
	GetResources(ctx context.Context, eventID string, ids []string) ([]domain.Resource, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
}

// CancellationService frees allocated seats and hands them to the cascade.
type CancellationService struct {
	repo      CancellationRepository
	clock     clock.Clock
	log       *zap.Logger
	publisher ReleasePublisher
}

func NewCancellationService(repo CancellationRepository, clk clock.Clock, log *zap.Logger, publisher ReleasePublisher) *CancellationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CancellationService{
		repo:      repo,
		clock:     clk,
		log:       log,
		publisher: publisher,
	}
}

// Cancel returns the ids of the freed seats. Cancelling an already cancelled
// allocation frees nothing and publishes nothing.
func (s *CancellationService) Cancel(ctx context.Context, allocationID string) ([]string, error) {
	if allocationID == "" {
		return nil, domain.ErrInvalidID
	}

	var (
		freed    []string
		released *domain.Released
	)
	err := retryOnConflict(ctx, defaultConflictRetries, func() error {
		freed, released = []string{}, nil

		alloc, err := s.repo.GetAllocation(ctx, allocationID)
		if err != nil {
			return err
		}
		if alloc.Status == domain.AllocationStatusCancelled {
			return nil
		}

		resources, err := s.repo.GetResources(ctx, alloc.EventID, alloc.ResourceIDs)
		if err != nil {
			return err
		}
		cs := domain.NewChangeset(alloc.EventID)
		for _, r := range resources {
			if !r.AllocatedTo(alloc.HoldID) {
				s.log.Error("allocation does not own its seat",
					zap.String("allocation_id", alloc.ID),
					zap.String("resource_id", r.ID),
					zap.String("state", string(r.State)),
				)
				return fmt.Errorf("%w: seat %s of allocation %s is %s", domain.ErrInvariantViolation, r.ID, alloc.ID, r.State)
			}
			cs.Free(r)
		}

		now := s.clock.Now()
		alloc.Status = domain.AllocationStatusCancelled
		alloc.CancelledAt = now
		cs.PutAllocation(alloc)
		ev := releasedSignal(alloc.EventID, alloc.ResourceIDs, false, now)
		cs.PutRelease(ev)
		if err := s.repo.Commit(ctx, cs); err != nil {
			return err
		}

		freed = append(freed, alloc.ResourceIDs...)
		ev.Version++
		released = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released != nil {
		s.log.Info("allocation cancelled",
			zap.String("allocation_id", allocationID),
			zap.String("event_id", released.EventID),
			zap.Strings("resource_ids", freed),
		)
		if s.publisher != nil {
			s.publisher.Publish(ctx, *released)
		}
	}
	return freed, nil
}
