package security

import (
	"sort"
	"sync"

	"github.com/doeshing/vocmd/internal/domain"
)

// MemoryStore is an in-process PermissionStore.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]domain.PermissionRequest
	grants   map[string]domain.PermissionGrant
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: map[string]domain.PermissionRequest{},
		grants:   map[string]domain.PermissionGrant{},
	}
}

func (s *MemoryStore) PutRequest(req domain.PermissionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryStore) Request(id string) (domain.PermissionRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	return req, ok, nil
}

func (s *MemoryStore) DeleteRequest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	return nil
}

func (s *MemoryStore) Requests() ([]domain.PermissionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PermissionRequest, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PutGrant(g domain.PermissionGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.Key] = g
	return nil
}

func (s *MemoryStore) Grant(key string) (domain.PermissionGrant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[key]
	return g, ok, nil
}

func (s *MemoryStore) DeleteGrant(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, key)
	return nil
}
