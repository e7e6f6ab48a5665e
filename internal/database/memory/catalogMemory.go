// Package memory holds map-backed repositories used when the service runs
// without a database. They satisfy the same interfaces as the postgres
// repositories and are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type CatalogStore struct {
	mu        sync.RWMutex
	resources map[string]*entity.Resource
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{resources: make(map[string]*entity.Resource)}
}

func (s *CatalogStore) Create(_ context.Context, resource *entity.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *resource
	s.resources[resource.ID] = &clone
	return nil
}

func (s *CatalogStore) GetByID(_ context.Context, id string) (*entity.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return nil, entity.ErrResourceNotFound
	}

	clone := *resource
	return &clone, nil
}

func (s *CatalogStore) Update(_ context.Context, resource *entity.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resource.ID]; !ok {
		return entity.ErrResourceNotFound
	}

	clone := *resource
	s.resources[resource.ID] = &clone
	return nil
}

func (s *CatalogStore) UpdateStatus(_ context.Context, id string, status entity.ResourceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return entity.ErrResourceNotFound
	}

	resource.Status = status
	return nil
}

func (s *CatalogStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return entity.ErrResourceNotFound
	}

	delete(s.resources, id)
	return nil
}

func (s *CatalogStore) GetAll(_ context.Context) ([]*entity.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(*entity.Resource) bool { return true }), nil
}

func (s *CatalogStore) GetByStatus(_ context.Context, status entity.ResourceStatus) ([]*entity.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(r *entity.Resource) bool { return r.Status == status }), nil
}

func (s *CatalogStore) SearchByTitle(_ context.Context, title string) ([]*entity.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(title)
	return s.collect(func(r *entity.Resource) bool {
		return strings.Contains(strings.ToLower(r.Title), needle)
	}), nil
}

// collect copies matching resources sorted by creation time. Callers must
// hold at least a read lock.
func (s *CatalogStore) collect(match func(*entity.Resource) bool) []*entity.Resource {
	var out []*entity.Resource
	for _, resource := range s.resources {
		if match(resource) {
			clone := *resource
			out = append(out, &clone)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
