package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type LoanStore struct {
	mu    sync.RWMutex
	loans map[string]*entity.Loan
}

func NewLoanStore() *LoanStore {
	return &LoanStore{loans: make(map[string]*entity.Loan)}
}

func (s *LoanStore) Create(_ context.Context, loan *entity.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneLoan(loan)
	s.loans[loan.ID] = clone
	return nil
}

func (s *LoanStore) GetByID(_ context.Context, id string) (*entity.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, entity.ErrLoanNotFound
	}
	return cloneLoan(loan), nil
}

func (s *LoanStore) Update(_ context.Context, loan *entity.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loans[loan.ID]; !ok {
		return entity.ErrLoanNotFound
	}

	s.loans[loan.ID] = cloneLoan(loan)
	return nil
}

func (s *LoanStore) GetActive(_ context.Context) ([]*entity.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(l *entity.Loan) bool { return l.Active() }), nil
}

func (s *LoanStore) GetActiveByUser(_ context.Context, userID string) ([]*entity.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(l *entity.Loan) bool {
		return l.Active() && l.UserID == userID
	}), nil
}

func (s *LoanStore) GetActiveByResource(_ context.Context, resourceID string) (*entity.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loan := range s.loans {
		if loan.Active() && loan.ResourceID == resourceID {
			return cloneLoan(loan), nil
		}
	}
	return nil, entity.ErrLoanNotFound
}

func (s *LoanStore) GetOverdue(_ context.Context, asOf time.Time) ([]*entity.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(l *entity.Loan) bool { return l.Overdue(asOf) }), nil
}

func (s *LoanStore) GetDueOn(_ context.Context, day time.Time) ([]*entity.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(l *entity.Loan) bool { return l.DueOn(day) }), nil
}

func (s *LoanStore) CountActiveByUser(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, loan := range s.loans {
		if loan.Active() && loan.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *LoanStore) collect(match func(*entity.Loan) bool) []*entity.Loan {
	var out []*entity.Loan
	for _, loan := range s.loans {
		if match(loan) {
			out = append(out, cloneLoan(loan))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

func cloneLoan(loan *entity.Loan) *entity.Loan {
	clone := *loan
	if loan.ReturnedAt != nil {
		t := *loan.ReturnedAt
		clone.ReturnedAt = &t
	}
	return &clone
}
