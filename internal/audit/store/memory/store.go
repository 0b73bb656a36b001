package memory

import (
	"context"
	"sync"

	"backoffice/internal/audit"
)

// Store keeps the master entry list and a tenant index in memory.
type Store struct {
	mu       sync.RWMutex
	entries  []audit.Entry
	byTenant map[string][]int
}

func New() *Store {
	return &Store{byTenant: make(map[string][]int)}
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry.Clone())
	key := audit.IndexKey(entry.TenantID)
	s.byTenant[key] = append(s.byTenant[key], len(s.entries)-1)
	return nil
}

// Search scans the tenant index when a tenant filter is given and the
// master list otherwise.
func (s *Store) Search(_ context.Context, criteria audit.Criteria) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.Entry{}
	if criteria.TenantID != "" {
		for _, i := range s.byTenant[criteria.TenantID] {
			if criteria.Matches(s.entries[i]) {
				out = append(out, s.entries[i].Clone())
			}
		}
		return criteria.Page(out), nil
	}
	for _, e := range s.entries {
		if criteria.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	return criteria.Page(out), nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
