package app

import (
	"context"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/sequence"
	"go.uber.org/zap"
)

type WaitlistRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	GetEntry(ctx context.Context, entryID string) (domain.WaitlistEntry, error)
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	GetResources(ctx context.Context, eventID string, ids []string) ([]domain.Resource, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
}

// WaitlistService manages standby requests and their offers.
type WaitlistService struct {
	repo      WaitlistRepository
	clock     clock.Clock
	log       *zap.Logger
	booking   *BookingService
	publisher ReleasePublisher
	seq       *sequence.Sequencer
}

func NewWaitlistService(
	repo WaitlistRepository,
	clk clock.Clock,
	log *zap.Logger,
	booking *BookingService,
	publisher ReleasePublisher,
	seq *sequence.Sequencer,
) *WaitlistService {
	if log == nil {
		log = zap.NewNop()
	}
	return &WaitlistService{
		repo:      repo,
		clock:     clk,
		log:       log,
		booking:   booking,
		publisher: publisher,
		seq:       seq,
	}
}

type EnqueueInput struct {
	EventID       string
	RequesterID   string
	ResourceCount int
}

func (s *WaitlistService) Enqueue(ctx context.Context, in EnqueueInput) (domain.WaitlistEntry, error) {
	if in.EventID == "" {
		return domain.WaitlistEntry{}, domain.ErrInvalidID
	}
	if in.RequesterID == "" {
		return domain.WaitlistEntry{}, domain.ErrRequesterRequired
	}
	if in.ResourceCount <= 0 {
		return domain.WaitlistEntry{}, domain.ErrInvalidQuantity
	}
	event, err := s.repo.GetEvent(ctx, in.EventID)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	if in.ResourceCount > event.PoolSize {
		return domain.WaitlistEntry{}, domain.ErrInvalidQuantity
	}

	entry := domain.WaitlistEntry{
		ID:            newUUID(),
		EventID:       in.EventID,
		RequesterID:   in.RequesterID,
		ResourceCount: in.ResourceCount,
		EnqueuedAt:    s.clock.Now(),
		Seq:           s.seq.Next(),
		Status:        domain.WaitlistStatusWaiting,
	}
	if err := s.repo.Commit(ctx, domain.NewChangeset(in.EventID).PutEntry(entry)); err != nil {
		return domain.WaitlistEntry{}, err
	}
	entry.Version++

	s.log.Info("waitlist entry enqueued",
		zap.String("entry_id", entry.ID),
		zap.String("event_id", entry.EventID),
		zap.String("requester_id", entry.RequesterID),
		zap.Int("resource_count", entry.ResourceCount),
	)
	return entry, nil
}

// CancelEntry withdraws a waiting entry. Once an offer exists the entry can
// only be fulfilled, declined, or left to lapse.
func (s *WaitlistService) CancelEntry(ctx context.Context, entryID string) error {
	if entryID == "" {
		return domain.ErrInvalidID
	}
	return retryOnConflict(ctx, defaultConflictRetries, func() error {
		entry, err := s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		switch entry.Status {
		case domain.WaitlistStatusCancelled:
			return nil
		case domain.WaitlistStatusWaiting:
		default:
			return domain.ErrEntryNotWaiting
		}
		entry.Status = domain.WaitlistStatusCancelled
		if err := s.repo.Commit(ctx, domain.NewChangeset(entry.EventID).PutEntry(entry)); err != nil {
			return err
		}
		s.log.Info("waitlist entry cancelled", zap.String("entry_id", entry.ID))
		return nil
	})
}

// Fulfill accepts an open offer and allocates its seats. A repeated call on a
// fulfilled entry returns the same allocation with Created=false.
func (s *WaitlistService) Fulfill(ctx context.Context, entryID string) (ConfirmResult, error) {
	if entryID == "" {
		return ConfirmResult{}, domain.ErrInvalidID
	}
	var result ConfirmResult
	err := retryOnConflict(ctx, defaultConflictRetries, func() error {
		entry, err := s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		switch entry.Status {
		case domain.WaitlistStatusFulfilled:
			alloc, err := s.booking.existing(ctx, entry.HoldID)
			if err != nil {
				return err
			}
			result = ConfirmResult{Allocation: alloc, Created: false}
			return nil
		case domain.WaitlistStatusOffered:
		case domain.WaitlistStatusExpired:
			return domain.ErrExpired
		case domain.WaitlistStatusWaiting:
			if entry.MissedOffers > 0 {
				return domain.ErrExpired
			}
			return domain.ErrEntryNotOffered
		default:
			return domain.ErrEntryNotOffered
		}

		hold, err := s.repo.GetHold(ctx, entry.HoldID)
		if err != nil {
			return err
		}
		entry.Status = domain.WaitlistStatusFulfilled
		result, err = s.booking.finalize(ctx, hold, func(cs *domain.Changeset) {
			cs.PutEntry(entry)
		})
		if err != nil {
			return err
		}
		s.log.Info("waitlist entry fulfilled",
			zap.String("entry_id", entry.ID),
			zap.String("allocation_id", result.Allocation.ID),
		)
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return result, nil
}

// Decline refuses an open offer. The entry ends expired and its seats go
// straight back into the cascade.
func (s *WaitlistService) Decline(ctx context.Context, entryID string) error {
	if entryID == "" {
		return domain.ErrInvalidID
	}
	var released *domain.Released
	err := retryOnConflict(ctx, defaultConflictRetries, func() error {
		released = nil
		entry, err := s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != domain.WaitlistStatusOffered {
			return domain.ErrEntryNotOffered
		}
		hold, err := s.repo.GetHold(ctx, entry.HoldID)
		if err != nil {
			return err
		}
		if hold.Terminal() {
			// The reaper got there first and will resolve the entry with it.
			return domain.ErrExpired
		}
		resources, err := s.repo.GetResources(ctx, hold.EventID, hold.ResourceIDs)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		cs, freed := reclaim(hold, resources, domain.HoldStatusReleased)
		entry.Status = domain.WaitlistStatusExpired
		entry.OfferExpiresAt = now
		cs.PutEntry(entry)
		var ev domain.Released
		if len(freed) > 0 {
			ev = releasedSignal(hold.EventID, freed, true, now)
			cs.PutRelease(ev)
		}
		if err := s.repo.Commit(ctx, cs); err != nil {
			return err
		}
		if len(freed) > 0 {
			ev.Version++
			released = &ev
		}
		s.log.Info("offer declined", zap.String("entry_id", entry.ID), zap.String("hold_id", hold.ID))
		return nil
	})
	if err != nil {
		return err
	}
	if released != nil && s.publisher != nil {
		s.publisher.Publish(ctx, *released)
	}
	return nil
}
