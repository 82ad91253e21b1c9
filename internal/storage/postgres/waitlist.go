package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, event_id, requester_id, resource_count, enqueued_at, seq, status, hold_id, offer_expires_at, missed_offers, version`

func scanEntry(row pgx.Row) (domain.WaitlistEntry, error) {
	var (
		e            domain.WaitlistEntry
		seq          int64
		status       string
		holdID       *string
		offerExpires *time.Time
	)
	err := row.Scan(&e.ID, &e.EventID, &e.RequesterID, &e.ResourceCount, &e.EnqueuedAt, &seq, &status, &holdID, &offerExpires, &e.MissedOffers, &e.Version)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	e.Seq = uint64(seq)
	e.Status = domain.WaitlistStatus(status)
	e.HoldID = derefString(holdID)
	e.OfferExpiresAt = derefTime(offerExpires)
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (domain.WaitlistEntry, error) {
	e, err := scanEntry(s.queryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, entryID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.WaitlistEntry{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.WaitlistEntry{}, domain.ErrEntryNotFound
		}
		return domain.WaitlistEntry{}, fmt.Errorf("get waitlist entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the event's entries in the given status, highest
// priority first.
func (s *Store) ListEntries(ctx context.Context, eventID string, status domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	query := `
SELECT ` + entryColumns + `
FROM waitlist_entries
WHERE event_id = $1 AND status = $2
ORDER BY enqueued_at ASC, seq ASC`
	rows, err := s.query(ctx, query, eventID, string(status))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.WaitlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate waitlist entries: %w", rows.Err())
	}
	return entries, nil
}

// MaxEntrySeq returns the highest waitlist sequence number stored.
func (s *Store) MaxEntrySeq(ctx context.Context) (uint64, error) {
	var seq int64
	if err := s.queryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM waitlist_entries`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max waitlist seq: %w", err)
	}
	return uint64(seq), nil
}
