package app

import (
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/sequence"
)

// reclaim builds the changeset that ends an active hold with the given status.
// Only seats still held under the hold's token are freed; the ids of those
// seats are returned.
func reclaim(hold domain.Hold, resources []domain.Resource, status domain.HoldStatus) (*domain.Changeset, []string) {
	cs := domain.NewChangeset(hold.EventID)
	freed := make([]string, 0, len(resources))
	for _, r := range resources {
		if !r.HeldBy(hold.ID) {
			continue
		}
		cs.Free(r)
		freed = append(freed, r.ID)
	}
	hold.Status = status
	cs.PutHold(hold)
	return cs, freed
}

// lapseOffer resolves an entry whose offer ran out. Below the missed-offer
// limit the entry re-enters the queue behind everyone already waiting.
func lapseOffer(entry domain.WaitlistEntry, policy WaitlistPolicy, now time.Time, seq *sequence.Sequencer) domain.WaitlistEntry {
	entry.MissedOffers++
	entry.HoldID = ""
	entry.OfferExpiresAt = time.Time{}
	if entry.MissedOffers < policy.MaxMissedOffers {
		entry.Status = domain.WaitlistStatusWaiting
		entry.EnqueuedAt = now
		entry.Seq = seq.Next()
		return entry
	}
	entry.Status = domain.WaitlistStatusExpired
	return entry
}

// releasedSignal builds a pending release for seats a changeset frees. The
// caller stores it in that same changeset so the signal survives a restart.
func releasedSignal(eventID string, ids []string, synthetic bool, now time.Time) domain.Released {
	return domain.Released{
		ID:          newUUID(),
		EventID:     eventID,
		ResourceIDs: ids,
		Count:       len(ids),
		Synthetic:   synthetic,
		Status:      domain.ReleaseStatusPending,
		ReleasedAt:  now,
	}
}
