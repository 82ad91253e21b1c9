package domain

import "time"

type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConfirmed HoldStatus = "confirmed"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusReleased  HoldStatus = "released"
)

// Hold represents an exclusive claim on a set of seats for a limited time.
// A hold with EntryID set backs a waitlist offer.
type Hold struct {
	ID          string
	EventID     string
	ResourceIDs []string
	RequesterID string
	EntryID     string
	Status      HoldStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Version     int64
}

func (h Hold) Terminal() bool {
	return h.Status != HoldStatusActive
}

func (h Hold) IsOffer() bool {
	return h.EntryID != ""
}

// ExpiredAt reports whether the hold's TTL has elapsed at now.
func (h Hold) ExpiredAt(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
