package domain

import "time"

type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "waiting"
	WaitlistStatusOffered   WaitlistStatus = "offered"
	WaitlistStatusFulfilled WaitlistStatus = "fulfilled"
	WaitlistStatusExpired   WaitlistStatus = "expired"
	WaitlistStatusCancelled WaitlistStatus = "cancelled"
)

// WaitlistEntry is a standby request for a number of seats.
type WaitlistEntry struct {
	ID             string
	EventID        string
	RequesterID    string
	ResourceCount  int
	EnqueuedAt     time.Time
	Seq            uint64
	Status         WaitlistStatus
	HoldID         string
	OfferExpiresAt time.Time
	MissedOffers   int
	Version        int64
}

// Before orders entries by enqueue time, then insertion sequence.
func (e WaitlistEntry) Before(other WaitlistEntry) bool {
	if !e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.EnqueuedAt.Before(other.EnqueuedAt)
	}
	return e.Seq < other.Seq
}
