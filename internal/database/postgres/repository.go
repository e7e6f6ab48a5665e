package repository

import (
	"context"
	"time"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type CatalogRepository interface {
	Create(ctx context.Context, resource *entity.Resource) error
	GetByID(ctx context.Context, id string) (*entity.Resource, error)
	Update(ctx context.Context, resource *entity.Resource) error
	UpdateStatus(ctx context.Context, id string, status entity.ResourceStatus) error
	Delete(ctx context.Context, id string) error

	GetAll(ctx context.Context) ([]*entity.Resource, error)
	GetByStatus(ctx context.Context, status entity.ResourceStatus) ([]*entity.Resource, error)
	SearchByTitle(ctx context.Context, title string) ([]*entity.Resource, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id string) error

	GetAll(ctx context.Context) ([]*entity.User, error)
}

type LoanRepository interface {
	Create(ctx context.Context, loan *entity.Loan) error
	GetByID(ctx context.Context, id string) (*entity.Loan, error)
	Update(ctx context.Context, loan *entity.Loan) error

	GetActive(ctx context.Context) ([]*entity.Loan, error)
	GetActiveByUser(ctx context.Context, userID string) ([]*entity.Loan, error)
	GetActiveByResource(ctx context.Context, resourceID string) (*entity.Loan, error)
	GetOverdue(ctx context.Context, asOf time.Time) ([]*entity.Loan, error)
	GetDueOn(ctx context.Context, day time.Time) ([]*entity.Loan, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}
