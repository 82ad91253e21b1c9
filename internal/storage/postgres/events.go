package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CreateEvent inserts the event and its free seats in one transaction.
func (s *Store) CreateEvent(ctx context.Context, event domain.Event, resourceIDs []string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		const stmt = `
INSERT INTO events (id, name, starts_at, pool_size)
VALUES ($1, $2, $3, $4)`
		_, err := s.exec(ctx, stmt, event.ID, event.Name, event.StartsAt, event.PoolSize)
		if err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			if isUniqueViolation(err) {
				return domain.ErrEventAlreadyExists
			}
			return fmt.Errorf("create event: %w", err)
		}

		rows := make([][]any, 0, len(resourceIDs))
		for i, id := range resourceIDs {
			rows = append(rows, []any{event.ID, id, i + 1, string(domain.ResourceStateFree), "", int64(1)})
		}
		_, err = txFromContext(ctx).CopyFrom(ctx,
			pgx.Identifier{"resources"},
			[]string{"event_id", "id", "ordinal", "state", "holder_token", "version"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateResource
			}
			return fmt.Errorf("provision resources: %w", err)
		}
		return nil
	})
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	const query = `SELECT id, name, starts_at, pool_size FROM events WHERE id = $1`
	var e domain.Event
	err := s.queryRow(ctx, query, eventID).Scan(&e.ID, &e.Name, &e.StartsAt, &e.PoolSize)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Event{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `
SELECT id, name, starts_at, pool_size
FROM events
ORDER BY created_at ASC, id ASC`
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.StartsAt, &e.PoolSize); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

const resourceColumns = `event_id, id, state, holder_token, hold_expiry, version`

func (s *Store) ListResources(ctx context.Context, eventID string) ([]domain.Resource, error) {
	if err := s.ensureEvent(ctx, eventID); err != nil {
		return nil, err
	}
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE event_id = $1 ORDER BY ordinal ASC`
	return s.scanResources(ctx, query, eventID)
}

// GetResources returns the requested seats in request order.
func (s *Store) GetResources(ctx context.Context, eventID string, ids []string) ([]domain.Resource, error) {
	if err := s.ensureEvent(ctx, eventID); err != nil {
		return nil, err
	}
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE event_id = $1 AND id = ANY($2)`
	found, err := s.scanResources(ctx, query, eventID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Resource, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	out := make([]domain.Resource, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrResourceNotFound, id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) ensureEvent(ctx context.Context, eventID string) error {
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`
	var exists bool
	if err := s.queryRow(ctx, existsQuery, eventID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return domain.ErrEventNotFound
	}
	return nil
}

func (s *Store) scanResources(ctx context.Context, query string, args ...any) ([]domain.Resource, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		var (
			r      domain.Resource
			state  string
			expiry *time.Time
		)
		if err := rows.Scan(&r.EventID, &r.ID, &state, &r.HolderToken, &expiry, &r.Version); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r.State = domain.ResourceState(state)
		r.HoldExpiry = derefTime(expiry)
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate resources: %w", rows.Err())
	}
	return out, nil
}
