package events

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindOfferExtended Kind = "offer_extended"
	KindReleased      Kind = "released"
)

// Envelope is the unit written to the outbox and relayed downstream.
// Key is the partition key; all records of one event share it.
type Envelope struct {
	Seq        uint64          `json:"seq"`
	Kind       Kind            `json:"kind"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Attempts   uint32          `json:"attempts,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// offerPayload and releasedPayload are the wire shapes of the domain signals.
type offerPayload struct {
	EntryID     string    `json:"entry_id"`
	EventID     string    `json:"event_id"`
	RequesterID string    `json:"requester_id"`
	HoldID      string    `json:"hold_id"`
	ResourceIDs []string  `json:"resource_ids"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type releasedPayload struct {
	EventID     string    `json:"event_id"`
	ResourceIDs []string  `json:"resource_ids"`
	Count       int       `json:"count"`
	Synthetic   bool      `json:"synthetic"`
	ReleasedAt  time.Time `json:"released_at"`
}
