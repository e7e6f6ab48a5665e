package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

func TestLoanStoreReturnsIsolatedCopies(t *testing.T) {
	store := NewLoanStore()

	returned := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	loanReturned := returned
	loan := &entity.Loan{
		ID:         "loan-1",
		ResourceID: "res-1",
		UserID:     "user-1",
		CreatedAt:  time.Date(2026, 7, 18, 12, 0, 0, 0, time.UTC),
		DueAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		ReturnedAt: &loanReturned,
	}
	require.NoError(t, store.Create(context.Background(), loan))

	// Mutating the caller's copy must not leak into the store.
	loan.Renewals = 9
	*loan.ReturnedAt = time.Time{}

	got, err := store.GetByID(context.Background(), "loan-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Renewals)
	require.NotNil(t, got.ReturnedAt)
	assert.Equal(t, returned, *got.ReturnedAt)

	// Nor must mutations of a read result.
	got.Renewals = 5
	again, err := store.GetByID(context.Background(), "loan-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Renewals)
	assert.NotSame(t, got, again)
}

func TestLoanStoreQueriesFilterByState(t *testing.T) {
	store := NewLoanStore()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	active := &entity.Loan{ID: "loan-1", UserID: "user-1", DueAt: now.AddDate(0, 0, 5)}
	overdue := &entity.Loan{ID: "loan-2", UserID: "user-1", DueAt: now.AddDate(0, 0, -2)}
	closedAt := now.AddDate(0, 0, -1)
	closed := &entity.Loan{ID: "loan-3", UserID: "user-1", DueAt: now, ReturnedAt: &closedAt}
	for _, l := range []*entity.Loan{active, overdue, closed} {
		require.NoError(t, store.Create(context.Background(), l))
	}

	activeLoans, err := store.GetActiveByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, activeLoans, 2)

	overdueLoans, err := store.GetOverdue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, overdueLoans, 1)
	assert.Equal(t, "loan-2", overdueLoans[0].ID)

	count, err := store.CountActiveByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
