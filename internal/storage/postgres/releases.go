package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/jackc/pgx/v5"
)

const releaseColumns = `id, event_id, resource_ids, remaining, synthetic, status, released_at, version`

func scanRelease(row pgx.Row) (domain.Released, error) {
	var (
		r      domain.Released
		status string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.ResourceIDs, &r.Count, &r.Synthetic, &status, &r.ReleasedAt, &r.Version); err != nil {
		return domain.Released{}, err
	}
	r.Status = domain.ReleaseStatus(status)
	return r, nil
}

func (s *Store) GetRelease(ctx context.Context, releaseID string) (domain.Released, error) {
	r, err := scanRelease(s.queryRow(ctx, `SELECT `+releaseColumns+` FROM release_signals WHERE id = $1`, releaseID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Released{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Released{}, domain.ErrReleaseNotFound
		}
		return domain.Released{}, fmt.Errorf("get release signal: %w", err)
	}
	return r, nil
}

// ListPendingReleases returns up to limit release signals that still have
// seats to offer, oldest first.
func (s *Store) ListPendingReleases(ctx context.Context, limit int) ([]domain.Released, error) {
	query := `
SELECT ` + releaseColumns + `
FROM release_signals
WHERE status = 'pending' AND remaining > 0
ORDER BY released_at ASC, id ASC
LIMIT $1`
	rows, err := s.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list release signals: %w", err)
	}
	defer rows.Close()

	var out []domain.Released
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release signal: %w", err)
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate release signals: %w", rows.Err())
	}
	return out, nil
}
