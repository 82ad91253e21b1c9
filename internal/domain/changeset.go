package domain

import "time"

// ResourceUpdate moves one resource to a new state. The store applies it only
// if the stored version still equals ExpectedVersion.
type ResourceUpdate struct {
	ResourceID      string
	ExpectedVersion int64
	State           ResourceState
	HolderToken     string
	HoldExpiry      time.Time
}

// Changeset is a set of version-checked writes within one event that a store
// commits atomically or not at all. Records with Version 0 are inserted;
// otherwise Version is the version the caller read and the store bumps it.
type Changeset struct {
	EventID     string
	Resources   []ResourceUpdate
	Holds       []Hold
	Allocations []Allocation
	Entries     []WaitlistEntry
	Releases    []Released
}

func NewChangeset(eventID string) *Changeset {
	return &Changeset{EventID: eventID}
}

func (c *Changeset) Hold(r Resource, token string, expiry time.Time) *Changeset {
	return c.move(r, ResourceStateHeld, token, expiry)
}

func (c *Changeset) Allocate(r Resource) *Changeset {
	return c.move(r, ResourceStateAllocated, r.HolderToken, time.Time{})
}

func (c *Changeset) Free(r Resource) *Changeset {
	return c.move(r, ResourceStateFree, "", time.Time{})
}

func (c *Changeset) PutHold(h Hold) *Changeset {
	c.Holds = append(c.Holds, h)
	return c
}

func (c *Changeset) PutAllocation(a Allocation) *Changeset {
	c.Allocations = append(c.Allocations, a)
	return c
}

func (c *Changeset) PutEntry(e WaitlistEntry) *Changeset {
	c.Entries = append(c.Entries, e)
	return c
}

func (c *Changeset) PutRelease(r Released) *Changeset {
	c.Releases = append(c.Releases, r)
	return c
}

func (c *Changeset) Empty() bool {
	return len(c.Resources) == 0 && len(c.Holds) == 0 && len(c.Allocations) == 0 &&
		len(c.Entries) == 0 && len(c.Releases) == 0
}

func (c *Changeset) move(r Resource, state ResourceState, token string, expiry time.Time) *Changeset {
	c.Resources = append(c.Resources, ResourceUpdate{
		ResourceID:      r.ID,
		ExpectedVersion: r.Version,
		State:           state,
		HolderToken:     token,
		HoldExpiry:      expiry,
	})
	return c
}
