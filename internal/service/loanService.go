package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/bookstack-dev/library-reservations/internal/database/postgres"
	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/notifier"
)

const DefaultLoanDuration = 14 * 24 * time.Hour

type LoanConfig struct {
	LoanDuration time.Duration
}

type loanService struct {
	loans        repository.LoanRepository
	catalog      repository.CatalogRepository
	users        repository.UserRepository
	reservations ReservationService
	rules        *RenewalRules
	notifier     Notifier
	cfg          LoanConfig
}

func NewLoanService(
	loans repository.LoanRepository,
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	reservations ReservationService,
	rules *RenewalRules,
	n Notifier,
	cfg LoanConfig,
) LoanService {
	if cfg.LoanDuration <= 0 {
		cfg.LoanDuration = DefaultLoanDuration
	}
	return &loanService{
		loans:        loans,
		catalog:      catalog,
		users:        users,
		reservations: reservations,
		rules:        rules,
		notifier:     n,
		cfg:          cfg,
	}
}

func (s *loanService) Borrow(ctx context.Context, resourceID, userID string) (*entity.Loan, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	resource, err := s.catalog.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource: %w", err)
	}

	switch resource.Status {
	case entity.ResourceStatusAvailable:
		if err := s.catalog.UpdateStatus(ctx, resourceID, entity.ResourceStatusBorrowed); err != nil {
			return nil, fmt.Errorf("failed to update resource status: %w", err)
		}

	case entity.ResourceStatusReserved:
		// A reserved resource can only go to the holder of the pending hold.
		reservation, ok := s.reservations.PendingReservation(resourceID, userID)
		if !ok {
			return nil, entity.ErrResourceUnavailable
		}
		if err := s.reservations.CompleteReservation(ctx, reservation.ID); err != nil {
			return nil, fmt.Errorf("failed to complete reservation: %w", err)
		}

	default:
		return nil, entity.ErrResourceUnavailable
	}

	now := time.Now()
	loan := &entity.Loan{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		UserID:     userID,
		CreatedAt:  now,
		DueAt:      now.Add(s.cfg.LoanDuration),
	}

	if err := s.loans.Create(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"resource_id": resourceID,
		"user_id":     userID,
		"due_at":      loan.DueAt,
	}).Info("loan created")

	s.notifier.Enqueue(*user,
		fmt.Sprintf("You borrowed %q. It is due on %s.", resource.Title, loan.DueAt.Format("2006-01-02")),
		notifier.ChannelEmail, notifier.DefaultPriority)

	return loan, nil
}

func (s *loanService) Return(ctx context.Context, loanID string) error {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return fmt.Errorf("failed to load loan: %w", err)
	}
	if !loan.Active() {
		return entity.ErrLoanNotActive
	}

	now := time.Now()
	loan.ReturnedAt = &now
	if err := s.loans.Update(ctx, loan); err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"loan_id":     loanID,
		"resource_id": loan.ResourceID,
	}).Info("loan returned")

	// The freed copy goes to the next waiter, if any.
	if err := s.reservations.HandleResourceReleased(ctx, loan.ResourceID); err != nil {
		return fmt.Errorf("failed to release resource: %w", err)
	}

	return nil
}

func (s *loanService) Renew(ctx context.Context, loanID string) (*entity.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}

	resource, err := s.catalog.GetByID(ctx, loan.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource: %w", err)
	}

	rule := s.rules.RuleFor(resource.Category)
	hasWaiters := s.reservations.QueueLength(loan.ResourceID) > 0

	if err := validateRenewal(loan, rule, hasWaiters, time.Now()); err != nil {
		return nil, err
	}

	loan.DueAt = loan.DueAt.AddDate(0, 0, rule.ExtensionDays)
	loan.Renewals++

	if err := s.loans.Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"loan_id":  loanID,
		"renewals": loan.Renewals,
		"due_at":   loan.DueAt,
	}).Info("loan renewed")

	if user, err := s.users.GetByID(ctx, loan.UserID); err == nil {
		s.notifier.Enqueue(*user,
			fmt.Sprintf("Your loan of %q was renewed. The new due date is %s.",
				resource.Title, loan.DueAt.Format("2006-01-02")),
			notifier.ChannelEmail, notifier.DefaultPriority)
	}

	return loan, nil
}

func (s *loanService) GetLoan(ctx context.Context, id string) (*entity.Loan, error) {
	return s.loans.GetByID(ctx, id)
}

func (s *loanService) ListActive(ctx context.Context) ([]*entity.Loan, error) {
	return s.loans.GetActive(ctx)
}

func (s *loanService) ListActiveByUser(ctx context.Context, userID string) ([]*entity.Loan, error) {
	return s.loans.GetActiveByUser(ctx, userID)
}

func (s *loanService) ListOverdue(ctx context.Context, asOf time.Time) ([]*entity.Loan, error) {
	return s.loans.GetOverdue(ctx, asOf)
}

func (s *loanService) ListDueOn(ctx context.Context, day time.Time) ([]*entity.Loan, error) {
	return s.loans.GetDueOn(ctx, day)
}
