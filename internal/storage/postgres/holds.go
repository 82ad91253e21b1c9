package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/jackc/pgx/v5"
)

const holdColumns = `id, event_id, resource_ids, requester_id, entry_id, status, created_at, expires_at, version`

func scanHold(row pgx.Row) (domain.Hold, error) {
	var (
		h       domain.Hold
		entryID *string
		status  string
	)
	err := row.Scan(&h.ID, &h.EventID, &h.ResourceIDs, &h.RequesterID, &entryID, &status, &h.CreatedAt, &h.ExpiresAt, &h.Version)
	if err != nil {
		return domain.Hold{}, err
	}
	h.EntryID = derefString(entryID)
	h.Status = domain.HoldStatus(status)
	return h, nil
}

func (s *Store) GetHold(ctx context.Context, holdID string) (domain.Hold, error) {
	h, err := scanHold(s.queryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

// ListExpiredHolds returns up to limit active holds whose TTL has elapsed at
// now, earliest expiry first.
func (s *Store) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	query := `
SELECT ` + holdColumns + `
FROM holds
WHERE status = 'active' AND expires_at <= $1
ORDER BY expires_at ASC, id ASC
LIMIT $2`
	rows, err := s.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate holds: %w", rows.Err())
	}
	return holds, nil
}

const allocationColumns = `id, hold_id, event_id, resource_ids, requester_id, status, confirmed_at, cancelled_at, version`

func scanAllocation(row pgx.Row) (domain.Allocation, error) {
	var (
		a           domain.Allocation
		status      string
		cancelledAt *time.Time
	)
	err := row.Scan(&a.ID, &a.HoldID, &a.EventID, &a.ResourceIDs, &a.RequesterID, &status, &a.ConfirmedAt, &cancelledAt, &a.Version)
	if err != nil {
		return domain.Allocation{}, err
	}
	a.Status = domain.AllocationStatus(status)
	a.CancelledAt = derefTime(cancelledAt)
	return a, nil
}

func (s *Store) GetAllocation(ctx context.Context, allocationID string) (domain.Allocation, error) {
	a, err := scanAllocation(s.queryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1`, allocationID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Allocation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Allocation{}, domain.ErrAllocationNotFound
		}
		return domain.Allocation{}, fmt.Errorf("get allocation: %w", err)
	}
	return a, nil
}

// GetAllocationByHold returns nil when the hold has no allocation.
func (s *Store) GetAllocationByHold(ctx context.Context, holdID string) (*domain.Allocation, error) {
	a, err := scanAllocation(s.queryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE hold_id = $1`, holdID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("get allocation by hold: %w", err)
	}
	return &a, nil
}
