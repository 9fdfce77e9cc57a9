// Package memory is an in-process kv.Store. Contents are lost on restart.
package memory

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"

	"plugbot/internal/kv"
)

// Store keeps strings, hashes and sets in maps guarded by one mutex.
type Store struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	closed  bool
}

var _ kv.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

func (s *Store) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return kv.ErrClosed
	}
	return nil
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	v, ok := s.strings[key]
	return v, ok, nil
}

// Set implements kv.Store.
func (s *Store) Set(_ context.Context, key, value string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.strings[key] = value
	return nil
}

// HGet implements kv.Store.
func (s *Store) HGet(_ context.Context, key, field string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	v, ok := s.hashes[key][field]
	return v, ok, nil
}

// HSet implements kv.Store.
func (s *Store) HSet(_ context.Context, key, field, value string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
	return nil
}

// SAdd implements kv.Store.
func (s *Store) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	var added int64
	for _, m := range members {
		if _, exists := set[m]; !exists {
			set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

// SRem implements kv.Store.
func (s *Store) SRem(_ context.Context, key string, members ...string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	set := s.sets[key]
	var removed int64
	for _, m := range members {
		if _, exists := set[m]; exists {
			delete(set, m)
			removed++
		}
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return removed, nil
}

// SIsMember implements kv.Store.
func (s *Store) SIsMember(_ context.Context, key, member string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

// SMIsMember implements kv.Store.
func (s *Store) SMIsMember(_ context.Context, key string, members ...string) ([]bool, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]bool, len(members))
	set := s.sets[key]
	for i, m := range members {
		_, out[i] = set[m]
	}
	return out, nil
}

// SRandMember implements kv.Store.
func (s *Store) SRandMember(_ context.Context, key string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	set := s.sets[key]
	if len(set) == 0 {
		return "", false, nil
	}
	n := rand.IntN(len(set))
	for m := range set {
		if n == 0 {
			return m, true, nil
		}
		n--
	}
	return "", false, nil
}

// Members returns a sorted copy of a set's members. It is not part of kv.Store and is
// meant for tests and diagnostics.
func (s *Store) Members(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Close implements kv.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
