package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*entity.User)}
}

func (s *UserStore) Create(_ context.Context, user *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (s *UserStore) Update(_ context.Context, user *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return entity.ErrUserNotFound
	}

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return entity.ErrUserNotFound
	}

	delete(s.users, id)
	return nil
}

func (s *UserStore) GetAll(_ context.Context) ([]*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.User, 0, len(s.users))
	for _, user := range s.users {
		clone := *user
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
