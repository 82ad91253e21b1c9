package domain

import "time"

type ReleaseStatus string

const (
	ReleaseStatusPending ReleaseStatus = "pending"
	ReleaseStatusDone    ReleaseStatus = "done"
)

// Released is emitted after an allocation is cancelled or an offer lapses.
// It is stored by the commit that freed the seats and stays pending until a
// cascade pass has offered what it can. Count is what is still to be offered.
type Released struct {
	ID          string
	EventID     string
	ResourceIDs []string
	Count       int
	// Synthetic marks releases produced by offer expiry or decline.
	Synthetic  bool
	Status     ReleaseStatus
	ReleasedAt time.Time
	Version    int64
}

func (r Released) Pending() bool {
	return r.Status == ReleaseStatusPending && r.Count > 0
}

// OfferExtended is emitted after an offer has been committed.
type OfferExtended struct {
	EntryID     string
	EventID     string
	RequesterID string
	HoldID      string
	ResourceIDs []string
	ExpiresAt   time.Time
	ExtendedAt  time.Time
}
