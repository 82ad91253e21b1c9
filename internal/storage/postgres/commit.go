package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

// Commit applies cs in one transaction. A row whose version moved, or an
// insert that collides with an existing row, rolls everything back with
// domain.ErrConflict.
func (s *Store) Commit(ctx context.Context, cs *domain.Changeset) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	// Seat rows are locked in id order so concurrent commits cannot deadlock.
	updates := append([]domain.ResourceUpdate(nil), cs.Resources...)
	sort.Slice(updates, func(i, j int) bool { return updates[i].ResourceID < updates[j].ResourceID })

	return s.WithTx(ctx, func(ctx context.Context) error {
		for _, u := range updates {
			if err := s.updateResource(ctx, cs.EventID, u); err != nil {
				return err
			}
		}
		for _, h := range cs.Holds {
			if err := s.putHold(ctx, h); err != nil {
				return err
			}
		}
		for _, a := range cs.Allocations {
			if err := s.putAllocation(ctx, a); err != nil {
				return err
			}
		}
		for _, e := range cs.Entries {
			if err := s.putEntry(ctx, e); err != nil {
				return err
			}
		}
		for _, r := range cs.Releases {
			if err := s.putRelease(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) updateResource(ctx context.Context, eventID string, u domain.ResourceUpdate) error {
	const stmt = `
UPDATE resources
SET state = $4, holder_token = $5, hold_expiry = $6, version = version + 1
WHERE event_id = $1 AND id = $2 AND version = $3`
	tag, err := s.exec(ctx, stmt, eventID, u.ResourceID, u.ExpectedVersion, string(u.State), u.HolderToken, nullTime(u.HoldExpiry))
	if err != nil {
		return writeError("update resource", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) putHold(ctx context.Context, h domain.Hold) error {
	if h.Version == 0 {
		const stmt = `
INSERT INTO holds (id, event_id, resource_ids, requester_id, entry_id, status, created_at, expires_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)`
		_, err := s.exec(ctx, stmt, h.ID, h.EventID, h.ResourceIDs, h.RequesterID, nullString(h.EntryID), string(h.Status), h.CreatedAt, h.ExpiresAt)
		if err != nil {
			return writeError("insert hold", err)
		}
		return nil
	}

	const stmt = `
UPDATE holds
SET status = $3, expires_at = $4, version = version + 1
WHERE id = $1 AND version = $2`
	tag, err := s.exec(ctx, stmt, h.ID, h.Version, string(h.Status), h.ExpiresAt)
	if err != nil {
		return writeError("update hold", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) putAllocation(ctx context.Context, a domain.Allocation) error {
	if a.Version == 0 {
		const stmt = `
INSERT INTO allocations (id, hold_id, event_id, resource_ids, requester_id, status, confirmed_at, cancelled_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)`
		_, err := s.exec(ctx, stmt, a.ID, a.HoldID, a.EventID, a.ResourceIDs, a.RequesterID, string(a.Status), a.ConfirmedAt, nullTime(a.CancelledAt))
		if err != nil {
			return writeError("insert allocation", err)
		}
		return nil
	}

	const stmt = `
UPDATE allocations
SET status = $3, cancelled_at = $4, version = version + 1
WHERE id = $1 AND version = $2`
	tag, err := s.exec(ctx, stmt, a.ID, a.Version, string(a.Status), nullTime(a.CancelledAt))
	if err != nil {
		return writeError("update allocation", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) putEntry(ctx context.Context, e domain.WaitlistEntry) error {
	if e.Version == 0 {
		const stmt = `
INSERT INTO waitlist_entries (id, event_id, requester_id, resource_count, enqueued_at, seq, status, hold_id, offer_expires_at, missed_offers, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)`
		_, err := s.exec(ctx, stmt, e.ID, e.EventID, e.RequesterID, e.ResourceCount, e.EnqueuedAt, int64(e.Seq),
			string(e.Status), nullString(e.HoldID), nullTime(e.OfferExpiresAt), e.MissedOffers)
		if err != nil {
			return writeError("insert waitlist entry", err)
		}
		return nil
	}

	const stmt = `
UPDATE waitlist_entries
SET enqueued_at = $3, seq = $4, status = $5, hold_id = $6, offer_expires_at = $7, missed_offers = $8, version = version + 1
WHERE id = $1 AND version = $2`
	tag, err := s.exec(ctx, stmt, e.ID, e.Version, e.EnqueuedAt, int64(e.Seq),
		string(e.Status), nullString(e.HoldID), nullTime(e.OfferExpiresAt), e.MissedOffers)
	if err != nil {
		return writeError("update waitlist entry", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) putRelease(ctx context.Context, r domain.Released) error {
	if r.Version == 0 {
		const stmt = `
INSERT INTO release_signals (id, event_id, resource_ids, remaining, synthetic, status, released_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`
		_, err := s.exec(ctx, stmt, r.ID, r.EventID, r.ResourceIDs, r.Count, r.Synthetic, string(r.Status), r.ReleasedAt)
		if err != nil {
			return writeError("insert release signal", err)
		}
		return nil
	}

	const stmt = `
UPDATE release_signals
SET remaining = $3, status = $4, version = version + 1
WHERE id = $1 AND version = $2`
	tag, err := s.exec(ctx, stmt, r.ID, r.Version, r.Count, string(r.Status))
	if err != nil {
		return writeError("update release signal", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func writeError(op string, err error) error {
	switch {
	case isUniqueViolation(err), isSerializationFailure(err):
		return errConflict(err)
	case isInvalidUUID(err):
		return domain.ErrInvalidID
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %s: %v", domain.ErrInvariantViolation, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
