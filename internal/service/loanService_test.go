package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstack-dev/library-reservations/internal/database/memory"
	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/waitlist"
)

type loanEnv struct {
	catalog  *memory.CatalogStore
	users    *memory.UserStore
	loans    *memory.LoanStore
	notifier *notifierRecorder
	resSvc   ReservationService
	svc      LoanService
}

func newLoanEnv(t *testing.T) *loanEnv {
	t.Helper()

	env := &loanEnv{
		catalog:  memory.NewCatalogStore(),
		users:    memory.NewUserStore(),
		loans:    memory.NewLoanStore(),
		notifier: &notifierRecorder{},
	}
	env.resSvc = NewReservationService(env.catalog, env.users, waitlist.NewStore(), env.notifier, ReservationConfig{})
	env.svc = NewLoanService(env.loans, env.catalog, env.users, env.resSvc, NewRenewalRules(), env.notifier, LoanConfig{})
	return env
}

func (e *loanEnv) addResource(t *testing.T, id string, category entity.ResourceCategory, status entity.ResourceStatus) {
	t.Helper()
	require.NoError(t, e.catalog.Create(context.Background(), &entity.Resource{
		ID:        id,
		Title:     "Title of " + id,
		Category:  category,
		Status:    status,
		CreatedAt: time.Now(),
	}))
}

func (e *loanEnv) addUser(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.users.Create(context.Background(), &entity.User{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		CreatedAt: time.Now(),
	}))
}

func TestBorrowAvailableResource(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryFiction, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	assert.True(t, loan.Active())
	assert.Equal(t, 0, loan.Renewals)
	assert.True(t, loan.DueAt.After(time.Now()))

	resource, err := env.catalog.GetByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceStatusBorrowed, resource.Status)
}

func TestBorrowReservedResourceRequiresTheHold(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryFiction, entity.ResourceStatusBorrowed)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	_, err := env.resSvc.CreateReservation(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	require.NoError(t, env.resSvc.HandleResourceReleased(context.Background(), "res-1"))

	// user-b has no hold on the reserved copy.
	_, err = env.svc.Borrow(context.Background(), "res-1", "user-b")
	assert.ErrorIs(t, err, entity.ErrResourceUnavailable)

	// user-a claims the hold; this completes the reservation.
	hold, ok := env.resSvc.PendingReservation("res-1", "user-a")
	require.True(t, ok)

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	assert.Equal(t, "user-a", loan.UserID)

	completed, err := env.resSvc.GetReservation(hold.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusCompleted, completed.Status)
}

func TestReturnPromotesNextWaiter(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryFiction, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	_, err = env.resSvc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	require.NoError(t, env.svc.Return(context.Background(), loan.ID))

	// Returning twice is rejected.
	assert.ErrorIs(t, env.svc.Return(context.Background(), loan.ID), entity.ErrLoanNotActive)

	// The returned copy went straight to the waiting user.
	_, ok := env.resSvc.PendingReservation("res-1", "user-b")
	assert.True(t, ok)

	resource, err := env.catalog.GetByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceStatusReserved, resource.Status)
}

func TestReturnWithoutWaitersFreesResource(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryFiction, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)
	require.NoError(t, env.svc.Return(context.Background(), loan.ID))

	resource, err := env.catalog.GetByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceStatusAvailable, resource.Status)
}

func TestRenewExtendsDueDatePerCategory(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryAcademic, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	renewed, err := env.svc.Renew(context.Background(), loan.ID)
	require.NoError(t, err)

	// Academic resources extend 10 days per renewal.
	assert.Equal(t, loan.DueAt.AddDate(0, 0, 10), renewed.DueAt)
	assert.Equal(t, 1, renewed.Renewals)

	notices := env.notifier.all()
	require.NotEmpty(t, notices)
	last := notices[len(notices)-1]
	assert.Equal(t, "user-a", last.UserID)
	assert.Contains(t, last.Message, "renewed")
}

func TestRenewRejectedWhenLimitReached(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryReference, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	// Reference resources allow a single renewal.
	_, err = env.svc.Renew(context.Background(), loan.ID)
	require.NoError(t, err)

	_, err = env.svc.Renew(context.Background(), loan.ID)
	assert.ErrorIs(t, err, entity.ErrRenewalRejected)
}

func TestRenewRejectedWhenUsersAreWaiting(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryFiction, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")
	env.addUser(t, "user-b")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	_, err = env.resSvc.CreateReservation(context.Background(), "res-1", "user-b")
	require.NoError(t, err)

	_, err = env.svc.Renew(context.Background(), loan.ID)
	assert.ErrorIs(t, err, entity.ErrRenewalRejected)
}

func TestRenewRejectedForApprovalCategories(t *testing.T) {
	env := newLoanEnv(t)
	env.addResource(t, "res-1", entity.CategoryHistorical, entity.ResourceStatusAvailable)
	env.addUser(t, "user-a")

	loan, err := env.svc.Borrow(context.Background(), "res-1", "user-a")
	require.NoError(t, err)

	_, err = env.svc.Renew(context.Background(), loan.ID)
	assert.ErrorIs(t, err, entity.ErrRenewalRejected)
	assert.Contains(t, err.Error(), "approval")
}

func TestValidateRenewalReportsEveryReason(t *testing.T) {
	loan := &entity.Loan{
		ID:       "loan-1",
		DueAt:    time.Now().AddDate(0, 0, -2),
		Renewals: 3,
	}
	rule := RenewalRule{MaxRenewals: 3, ExtensionDays: 10, RequiresApproval: true}

	err := validateRenewal(loan, rule, true, time.Now())
	require.ErrorIs(t, err, entity.ErrRenewalRejected)
	assert.Contains(t, err.Error(), "overdue")
	assert.Contains(t, err.Error(), "limit")
	assert.Contains(t, err.Error(), "waiting")
	assert.Contains(t, err.Error(), "approval")
}
