package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"go.uber.org/zap"
)

type AdminRepository interface {
	CreateEvent(ctx context.Context, event domain.Event, resourceIDs []string) error
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	ListResources(ctx context.Context, eventID string) ([]domain.Resource, error)
}

type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
	log   *zap.Logger
}

func NewAdminService(repo AdminRepository, clk clock.Clock, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{
		repo:  repo,
		clock: clk,
		log:   log,
	}
}

type CreateEventInput struct {
	Name     string
	StartsAt *time.Time
	PoolSize int
}

// CreateEvent provisions an event together with its pool of free seats.
func (s *AdminService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}
	if in.PoolSize <= 0 {
		return domain.Event{}, domain.ErrInvalidPoolSize
	}
	startsAt := s.clock.Now()
	if in.StartsAt != nil {
		startsAt = *in.StartsAt
	}

	event := domain.Event{
		ID:       newUUID(),
		Name:     name,
		StartsAt: startsAt,
		PoolSize: in.PoolSize,
	}

	if err := s.repo.CreateEvent(ctx, event, domain.SeatIDs(in.PoolSize)); err != nil {
		return domain.Event{}, err
	}
	s.log.Info("event provisioned",
		zap.String("event_id", event.ID),
		zap.String("name", event.Name),
		zap.Int("pool_size", event.PoolSize),
	)
	return event, nil
}

func (s *AdminService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

func (s *AdminService) Resources(ctx context.Context, eventID string) ([]domain.Resource, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListResources(ctx, eventID)
}

// Availability counts the pool by state at the time of the read.
func (s *AdminService) Availability(ctx context.Context, eventID string) (domain.Availability, error) {
	resources, err := s.Resources(ctx, eventID)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.CountStates(eventID, resources), nil
}
