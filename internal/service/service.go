package service

import (
	"context"
	"time"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

// ReservationService coordinates holds and waitlists for catalog resources.
// All state transitions for a resource happen under that resource's lock, so
// completing a hold and promoting the next waiter are a single atomic step.
type ReservationService interface {
	CreateReservation(ctx context.Context, resourceID, userID string) (*entity.Placement, error)
	CancelReservation(ctx context.Context, id string) error
	CompleteReservation(ctx context.Context, id string) error
	ExtendReservation(ctx context.Context, id string, days int) error

	// HandleResourceReleased hands a freed resource to the next waiter or
	// marks it available when nobody is waiting.
	HandleResourceReleased(ctx context.Context, resourceID string) error

	// ExpireReservations transitions every hold past its deadline and
	// returns the reservations that expired during this call.
	ExpireReservations(ctx context.Context, now time.Time) ([]*entity.Reservation, error)

	GetReservation(id string) (*entity.Reservation, error)
	PendingReservation(resourceID, userID string) (*entity.Reservation, bool)
	ListActive() []*entity.Reservation
	ListActiveByUser(userID string) []*entity.Reservation
	CountActiveByUser(userID string) int
	QueueLength(resourceID string) int
}

type LoanService interface {
	Borrow(ctx context.Context, resourceID, userID string) (*entity.Loan, error)
	Return(ctx context.Context, loanID string) error
	Renew(ctx context.Context, loanID string) (*entity.Loan, error)

	GetLoan(ctx context.Context, id string) (*entity.Loan, error)
	ListActive(ctx context.Context) ([]*entity.Loan, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*entity.Loan, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*entity.Loan, error)
	ListDueOn(ctx context.Context, day time.Time) ([]*entity.Loan, error)
}

type CatalogService interface {
	AddResource(ctx context.Context, req *AddResourceRequest) (*entity.Resource, error)
	GetResource(ctx context.Context, id string) (*entity.Resource, error)
	ListResources(ctx context.Context) ([]*entity.Resource, error)
	SearchResources(ctx context.Context, title string) ([]*entity.Resource, error)
	RemoveResource(ctx context.Context, id string) error
}

type UserService interface {
	RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error)
	GetUser(ctx context.Context, id string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
}

type AddResourceRequest struct {
	Title    string                  `json:"title" binding:"required"`
	Author   string                  `json:"author"`
	Category entity.ResourceCategory `json:"category" binding:"required"`
}

type RegisterUserRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	TelegramID string `json:"telegram_id"`
}
