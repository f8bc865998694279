package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudkeep/poolkeeper/pkg/poolerr"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// MemoryStore is an in-process Store implementation guarded by a single
// mutex, giving it the same row-level serializability as BoltStore's
// single-bucket transactions. It exists for unit tests across the
// balancer/queue/worker/manager packages that need a fast Store without
// touching disk.
type MemoryStore struct {
	mu        sync.Mutex
	resources map[string]*types.Resource
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resources: make(map[string]*types.Resource)}
}

func (s *MemoryStore) Create(driver string, values map[string]interface{}) (*types.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	r := &types.Resource{
		ID:        uuid.NewString(),
		Driver:    driver,
		Status:    types.StatusStopped,
		Data:      map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	ApplyValues(r, values)
	s.resources[r.ID] = r
	return r.Clone(), nil
}

func (s *MemoryStore) Get(id string) (*types.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, poolerr.NotFound("resource", id)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Update(id string, values map[string]interface{}) (*types.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, poolerr.NotFound("resource", id)
	}
	ApplyValues(r, values)
	r.UpdatedAt = time.Now().UTC()
	return r.Clone(), nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return poolerr.NotFound("resource", id)
	}
	delete(s.resources, id)
	return nil
}

func (s *MemoryStore) Find(search types.Search) ([]*types.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*types.Resource
	for _, r := range s.resources {
		if search.Filter.Matches(r) {
			matches = append(matches, r.Clone())
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	if search.Offset > 0 {
		if search.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[search.Offset:]
	}
	if search.Limit > 0 && search.Limit < len(matches) {
		matches = matches[:search.Limit]
	}
	return matches, nil
}

func (s *MemoryStore) Count(filter types.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.resources {
		if filter.Matches(r) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CompareAndSet(id string, filter types.Filter, values map[string]interface{}) (*types.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[id]
	if !ok || !filter.Matches(r) {
		return nil, nil
	}
	ApplyValues(r, values)
	r.UpdatedAt = time.Now().UTC()
	return r.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }
