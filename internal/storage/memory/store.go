// Package memory is a process-local store. Writes within one event are
// serialized by that event's partition lock; writes to different events
// never contend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

type partition struct {
	mu          sync.Mutex
	event       domain.Event
	order       []string
	resources   map[string]domain.Resource
	holds       map[string]domain.Hold
	allocations map[string]domain.Allocation
	allocByHold map[string]string
	entries     map[string]domain.WaitlistEntry
	releases    map[string]domain.Released
}

type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition
	events     []string

	// id -> event id
	holdIndex  sync.Map
	allocIndex sync.Map
	entryIndex sync.Map
	relIndex   sync.Map
}

func NewStore() *Store {
	return &Store{partitions: make(map[string]*partition)}
}

// Ping always succeeds; the store lives in the process.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateEvent(_ context.Context, event domain.Event, resourceIDs []string) error {
	if event.ID == "" {
		return domain.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[event.ID]; ok {
		return domain.ErrEventAlreadyExists
	}

	p := &partition{
		event:       event,
		order:       make([]string, 0, len(resourceIDs)),
		resources:   make(map[string]domain.Resource, len(resourceIDs)),
		holds:       make(map[string]domain.Hold),
		allocations: make(map[string]domain.Allocation),
		allocByHold: make(map[string]string),
		entries:     make(map[string]domain.WaitlistEntry),
		releases:    make(map[string]domain.Released),
	}
	for _, id := range resourceIDs {
		if _, dup := p.resources[id]; dup {
			return domain.ErrDuplicateResource
		}
		p.order = append(p.order, id)
		p.resources[id] = domain.Resource{
			EventID: event.ID,
			ID:      id,
			State:   domain.ResourceStateFree,
			Version: 1,
		}
	}
	s.partitions[event.ID] = p
	s.events = append(s.events, event.ID)
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID string) (domain.Event, error) {
	p, err := s.partition(eventID)
	if err != nil {
		return domain.Event{}, err
	}
	return p.event, nil
}

// ListEvents returns events in creation order.
func (s *Store) ListEvents(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]domain.Event, 0, len(s.events))
	for _, id := range s.events {
		events = append(events, s.partitions[id].event)
	}
	return events, nil
}

// ListResources returns every seat of the event in provisioning order.
func (s *Store) ListResources(_ context.Context, eventID string) ([]domain.Resource, error) {
	p, err := s.partition(eventID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Resource, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.resources[id])
	}
	return out, nil
}

// GetResources returns the requested seats in request order.
func (s *Store) GetResources(_ context.Context, eventID string, ids []string) ([]domain.Resource, error) {
	p, err := s.partition(eventID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Resource, 0, len(ids))
	for _, id := range ids {
		r, ok := p.resources[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrResourceNotFound, id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) GetHold(_ context.Context, holdID string) (domain.Hold, error) {
	p, ok := s.indexed(&s.holdIndex, holdID)
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return copyHold(h), nil
}

func (s *Store) GetAllocation(_ context.Context, allocationID string) (domain.Allocation, error) {
	p, ok := s.indexed(&s.allocIndex, allocationID)
	if !ok {
		return domain.Allocation{}, domain.ErrAllocationNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.allocations[allocationID]
	if !ok {
		return domain.Allocation{}, domain.ErrAllocationNotFound
	}
	return copyAllocation(a), nil
}

// GetAllocationByHold returns nil when the hold has no allocation.
func (s *Store) GetAllocationByHold(_ context.Context, holdID string) (*domain.Allocation, error) {
	p, ok := s.indexed(&s.holdIndex, holdID)
	if !ok {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.allocByHold[holdID]
	if !ok {
		return nil, nil
	}
	a := copyAllocation(p.allocations[id])
	return &a, nil
}

func (s *Store) GetEntry(_ context.Context, entryID string) (domain.WaitlistEntry, error) {
	p, ok := s.indexed(&s.entryIndex, entryID)
	if !ok {
		return domain.WaitlistEntry{}, domain.ErrEntryNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[entryID]
	if !ok {
		return domain.WaitlistEntry{}, domain.ErrEntryNotFound
	}
	return e, nil
}

// ListEntries returns the event's entries in the given status, highest
// priority first.
func (s *Store) ListEntries(_ context.Context, eventID string, status domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	p, err := s.partition(eventID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	out := make([]domain.WaitlistEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// MaxEntrySeq returns the highest waitlist sequence number stored.
func (s *Store) MaxEntrySeq(_ context.Context) (uint64, error) {
	var highest uint64
	for _, p := range s.snapshot() {
		p.mu.Lock()
		for _, e := range p.entries {
			if e.Seq > highest {
				highest = e.Seq
			}
		}
		p.mu.Unlock()
	}
	return highest, nil
}

func (s *Store) GetRelease(_ context.Context, releaseID string) (domain.Released, error) {
	p, ok := s.indexed(&s.relIndex, releaseID)
	if !ok {
		return domain.Released{}, domain.ErrReleaseNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.releases[releaseID]
	if !ok {
		return domain.Released{}, domain.ErrReleaseNotFound
	}
	return copyRelease(r), nil
}

// ListPendingReleases returns up to limit release signals that still have
// seats to offer, oldest first.
func (s *Store) ListPendingReleases(_ context.Context, limit int) ([]domain.Released, error) {
	var out []domain.Released
	for _, p := range s.snapshot() {
		p.mu.Lock()
		for _, r := range p.releases {
			if r.Pending() {
				out = append(out, copyRelease(r))
			}
		}
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReleasedAt.Equal(out[j].ReleasedAt) {
			return out[i].ReleasedAt.Before(out[j].ReleasedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListExpiredHolds returns up to limit active holds whose TTL has elapsed at
// now, earliest expiry first.
func (s *Store) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	var out []domain.Hold
	for _, p := range s.snapshot() {
		p.mu.Lock()
		for _, h := range p.holds {
			if h.Status == domain.HoldStatusActive && h.ExpiredAt(now) {
				out = append(out, copyHold(h))
			}
		}
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Commit applies cs atomically. Any stale version, or an insert of a record
// that already exists, rejects the whole changeset with domain.ErrConflict.
func (s *Store) Commit(_ context.Context, cs *domain.Changeset) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	p, err := s.partition(cs.EventID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(cs); err != nil {
		return err
	}

	for _, u := range cs.Resources {
		r := p.resources[u.ResourceID]
		r.State = u.State
		r.HolderToken = u.HolderToken
		r.HoldExpiry = u.HoldExpiry
		r.Version++
		p.resources[u.ResourceID] = r
	}
	for _, h := range cs.Holds {
		h = copyHold(h)
		h.Version++
		p.holds[h.ID] = h
		s.holdIndex.Store(h.ID, cs.EventID)
	}
	for _, a := range cs.Allocations {
		a = copyAllocation(a)
		a.Version++
		p.allocations[a.ID] = a
		p.allocByHold[a.HoldID] = a.ID
		s.allocIndex.Store(a.ID, cs.EventID)
	}
	for _, e := range cs.Entries {
		e.Version++
		p.entries[e.ID] = e
		s.entryIndex.Store(e.ID, cs.EventID)
	}
	for _, r := range cs.Releases {
		r = copyRelease(r)
		r.Version++
		p.releases[r.ID] = r
		s.relIndex.Store(r.ID, cs.EventID)
	}
	return nil
}

func (p *partition) check(cs *domain.Changeset) error {
	for _, u := range cs.Resources {
		r, ok := p.resources[u.ResourceID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrResourceNotFound, u.ResourceID)
		}
		if r.Version != u.ExpectedVersion {
			return domain.ErrConflict
		}
	}
	for _, h := range cs.Holds {
		if h.EventID != cs.EventID {
			return fmt.Errorf("%w: hold %s outside event %s", domain.ErrInvariantViolation, h.ID, cs.EventID)
		}
		cur, ok := p.holds[h.ID]
		if !matches(ok, cur.Version, h.Version) {
			return domain.ErrConflict
		}
	}
	for _, a := range cs.Allocations {
		cur, ok := p.allocations[a.ID]
		if !matches(ok, cur.Version, a.Version) {
			return domain.ErrConflict
		}
		if existing, taken := p.allocByHold[a.HoldID]; taken && existing != a.ID {
			return domain.ErrConflict
		}
	}
	for _, e := range cs.Entries {
		cur, ok := p.entries[e.ID]
		if !matches(ok, cur.Version, e.Version) {
			return domain.ErrConflict
		}
	}
	for _, r := range cs.Releases {
		if r.EventID != cs.EventID {
			return fmt.Errorf("%w: release %s outside event %s", domain.ErrInvariantViolation, r.ID, cs.EventID)
		}
		cur, ok := p.releases[r.ID]
		if !matches(ok, cur.Version, r.Version) {
			return domain.ErrConflict
		}
	}
	return nil
}

// matches reports whether a record write at version want is valid against
// the stored state.
func matches(exists bool, stored, want int64) bool {
	if want == 0 {
		return !exists
	}
	return exists && stored == want
}

func (s *Store) partition(eventID string) (*partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return p, nil
}

func (s *Store) indexed(index *sync.Map, id string) (*partition, bool) {
	v, ok := index.Load(id)
	if !ok {
		return nil, false
	}
	p, err := s.partition(v.(string))
	return p, err == nil
}

func (s *Store) snapshot() []*partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*partition, 0, len(s.events))
	for _, id := range s.events {
		out = append(out, s.partitions[id])
	}
	return out
}

func copyHold(h domain.Hold) domain.Hold {
	h.ResourceIDs = append([]string(nil), h.ResourceIDs...)
	return h
}

func copyAllocation(a domain.Allocation) domain.Allocation {
	a.ResourceIDs = append([]string(nil), a.ResourceIDs...)
	return a
}

func copyRelease(r domain.Released) domain.Released {
	r.ResourceIDs = append([]string(nil), r.ResourceIDs...)
	return r
}
