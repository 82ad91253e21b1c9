package domain

import "time"

type AllocationStatus string

const (
	AllocationStatusActive    AllocationStatus = "active"
	AllocationStatusCancelled AllocationStatus = "cancelled"
)

// Allocation is a confirmed claim derived from a hold.
type Allocation struct {
	ID          string
	HoldID      string
	EventID     string
	ResourceIDs []string
	RequesterID string
	Status      AllocationStatus
	ConfirmedAt time.Time
	CancelledAt time.Time
	Version     int64
}
