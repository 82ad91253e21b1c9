package domain

import "time"

type ResourceState string

const (
	ResourceStateFree      ResourceState = "free"
	ResourceStateHeld      ResourceState = "held"
	ResourceStateAllocated ResourceState = "allocated"
)

// Resource is one seat of an event. Version increases on every transition.
type Resource struct {
	EventID     string
	ID          string
	State       ResourceState
	HolderToken string
	HoldExpiry  time.Time
	Version     int64
}

func (r Resource) IsFree() bool {
	return r.State == ResourceStateFree
}

// HeldBy reports whether the resource is held under the given token.
func (r Resource) HeldBy(token string) bool {
	return r.State == ResourceStateHeld && r.HolderToken == token
}

// AllocatedTo reports whether the resource is allocated under the given token.
func (r Resource) AllocatedTo(token string) bool {
	return r.State == ResourceStateAllocated && r.HolderToken == token
}

// Availability is a projection of resource states for one event.
type Availability struct {
	EventID   string
	PoolSize  int
	Free      int
	Held      int
	Allocated int
}

// CountStates derives availability from authoritative resource rows.
func CountStates(eventID string, resources []Resource) Availability {
	a := Availability{EventID: eventID, PoolSize: len(resources)}
	for _, r := range resources {
		switch r.State {
		case ResourceStateFree:
			a.Free++
		case ResourceStateHeld:
			a.Held++
		case ResourceStateAllocated:
			a.Allocated++
		}
	}
	return a
}
