// Package store implements the particle store: a multi-valued mapping
// from cell key to particle, the primary index owned by a World.
package store

import (
	"sort"

	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/particle"
)

// Entry pairs a cell key with one particle held under it. Store.All
// returns a snapshot of entries so callers can safely mutate the store
// while iterating the snapshot — the erase-safe two-pass pattern used
// throughout rebin and refine instead of iterator invalidation.
type Entry struct {
	Key cellkey.Key
	P   particle.Particle
}

// Store is a multi-valued map from cell key to particle. It preserves
// no order among particles sharing a key; callers must not depend on
// one.
type Store struct {
	byKey map[cellkey.Key][]particle.Particle
	n     int
}

// New returns an empty store.
func New() *Store {
	return &Store{byKey: make(map[cellkey.Key][]particle.Particle)}
}

// Insert adds one particle under key k.
func (s *Store) Insert(k cellkey.Key, p particle.Particle) {
	s.byKey[k] = append(s.byKey[k], p)
	s.n++
}

// InsertAll adds several particles under key k.
func (s *Store) InsertAll(k cellkey.Key, ps []particle.Particle) {
	if len(ps) == 0 {
		return
	}
	s.byKey[k] = append(s.byKey[k], ps...)
	s.n += len(ps)
}

// EraseRange removes every particle under key k and returns how many
// were removed.
func (s *Store) EraseRange(k cellkey.Key) int {
	removed := len(s.byKey[k])
	if removed == 0 {
		return 0
	}
	delete(s.byKey, k)
	s.n -= removed
	return removed
}

// EqualRange returns a snapshot copy of the particles under key k. The
// caller may freely mutate the store afterwards without affecting the
// returned slice.
func (s *Store) EqualRange(k cellkey.Key) []particle.Particle {
	cur := s.byKey[k]
	if len(cur) == 0 {
		return nil
	}
	out := make([]particle.Particle, len(cur))
	copy(out, cur)
	return out
}

// Count returns the number of particles currently under key k.
func (s *Store) Count(k cellkey.Key) int {
	return len(s.byKey[k])
}

// Size returns the total number of particles in the store.
func (s *Store) Size() int {
	return s.n
}

// Clear removes every particle from the store.
func (s *Store) Clear() {
	s.byKey = make(map[cellkey.Key][]particle.Particle)
	s.n = 0
}

// Keys returns every key currently present in the store, sorted by
// Key.Less for deterministic iteration.
func (s *Store) Keys() []cellkey.Key {
	keys := make([]cellkey.Key, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// All returns a snapshot of every (key, particle) pair in the store, in
// the same deterministic key order as Keys. Mutating the store after
// taking the snapshot does not affect it — the basis for erase-safe
// traversal in rebin and refine.
func (s *Store) All() []Entry {
	entries := make([]Entry, 0, s.n)
	for _, k := range s.Keys() {
		for _, p := range s.byKey[k] {
			entries = append(entries, Entry{Key: k, P: p})
		}
	}
	return entries
}
