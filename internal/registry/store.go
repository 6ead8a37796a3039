// Package registry holds the authoritative set of registered game servers.
//
// Every mutation other than Insert is gated by an ownership check: the
// caller's network address must equal the address the record was created
// from. A failed check is reported as Denied and changes nothing; unknown
// ids are indistinguishable from foreign ones.
package registry

import (
	"crypto/rand"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/woozymasta/beacon/internal/models"
)

// Access is the outcome of an ownership check.
type Access int

const (
	// Denied covers both unknown ids and address mismatches.
	Denied Access = iota
	// Granted means the record exists and belongs to the caller.
	Granted
)

func (a Access) String() string {
	if a == Granted {
		return "granted"
	}

	return "denied"
}

// Store maps server id to record. Records never leave the store by
// reference; all reads return clones.
type Store struct {
	records map[string]*entry
	now     func() time.Time

	// prefix is random per store, seq is the insert counter; together they form unique ids.
	prefix [8]byte
	seq    uint64

	mu sync.RWMutex
}

type entry struct {
	record models.ServerRecord
	seq    uint64
}

// Option configures the Store.
type Option func(*Store)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*entry),
		now:     time.Now,
	}
	_, _ = rand.Read(s.prefix[:])

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Insert assigns a fresh id to rec, stores it and returns the id.
// Any id on rec is ignored. A zero LastHeartbeat or Registered is set to now.
func (s *Store) Insert(rec models.ServerRecord) string {
	now := s.now()
	if rec.Registered.IsZero() {
		rec.Registered = now
	}
	if rec.LastHeartbeat.IsZero() {
		rec.LastHeartbeat = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec.ID = s.idFor(s.seq)
	s.records[rec.ID] = &entry{record: rec.Clone(), seq: s.seq}

	return rec.ID
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (models.ServerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return models.ServerRecord{}, false
	}

	return e.record.Clone(), true
}

// Remove deletes the record if present. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
}

// List returns copies of all records in registration order.
func (s *Store) List() []models.ServerRecord {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	list := make([]models.ServerRecord, len(entries))
	for i, e := range entries {
		list[i] = e.record.Clone()
	}
	s.mu.RUnlock()

	return list
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Evict removes every record whose last heartbeat is older than now - maxAge
// and returns the removed records.
func (s *Store) Evict(maxAge time.Duration) []models.ServerRecord {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []models.ServerRecord
	for id, e := range s.records {
		if e.record.LastHeartbeat.Before(cutoff) {
			evicted = append(evicted, e.record)
			delete(s.records, id)
		}
	}

	return evicted
}

// Authorize returns a copy of the record if it exists and was registered from ip.
func (s *Store) Authorize(id, ip string) (models.ServerRecord, Access) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, access := s.owned(id, ip)
	if access != Granted {
		return models.ServerRecord{}, Denied
	}

	return e.record.Clone(), Granted
}

// Heartbeat refreshes the liveness timestamp of an owned record and, when
// players is not nil, its player count.
func (s *Store) Heartbeat(id, ip string, players *int) Access {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, access := s.owned(id, ip)
	if access != Granted {
		return access
	}

	if now.After(e.record.LastHeartbeat) {
		e.record.LastHeartbeat = now
	}
	if players != nil {
		e.record.PlayerCount = *players
	}

	return Granted
}

// Patch applies field updates to an owned record. Unrecognized or immutable
// field names are skipped; the number of applied fields is returned.
func (s *Store) Patch(id, ip string, values map[string]string) (Access, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, access := s.owned(id, ip)
	if access != Granted {
		return access, 0
	}

	return Granted, applyPatch(&e.record, values)
}

// RemoveOwned deletes an owned record.
func (s *Store) RemoveOwned(id, ip string) Access {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, access := s.owned(id, ip); access != Granted {
		return access
	}
	delete(s.records, id)

	return Granted
}

// owned must be called with s.mu held.
func (s *Store) owned(id, ip string) (*entry, Access) {
	e, ok := s.records[id]
	if !ok || ip == "" || e.record.IP != ip {
		return nil, Denied
	}

	return e, Granted
}

func (s *Store) idFor(seq uint64) string {
	var u uuid.UUID
	copy(u[:8], s.prefix[:])
	binary.BigEndian.PutUint64(u[8:], seq)

	return u.String()
}
