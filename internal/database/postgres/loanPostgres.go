package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type loanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *entity.Loan) error {
	query := `
		INSERT INTO loans (id, resource_id, user_id, created_at, due_at, returned_at, renewals)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.ResourceID,
		loan.UserID,
		loan.CreatedAt,
		loan.DueAt,
		loan.ReturnedAt,
		loan.Renewals,
	)
	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*entity.Loan, error) {
	query := `
		SELECT id, resource_id, user_id, created_at, due_at, returned_at, renewals
		FROM loans
		WHERE id = $1
	`

	var loan entity.Loan
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&loan.ID,
		&loan.ResourceID,
		&loan.UserID,
		&loan.CreatedAt,
		&loan.DueAt,
		&loan.ReturnedAt,
		&loan.Renewals,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *entity.Loan) error {
	query := `
		UPDATE loans
		SET due_at = $2, returned_at = $3, renewals = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.DueAt,
		loan.ReturnedAt,
		loan.Renewals,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.ErrLoanNotFound
	}
	return nil
}

func (r *loanRepository) GetActive(ctx context.Context) ([]*entity.Loan, error) {
	query := `
		SELECT id, resource_id, user_id, created_at, due_at, returned_at, renewals
		FROM loans
		WHERE returned_at IS NULL
		ORDER BY due_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

func (r *loanRepository) GetActiveByUser(ctx context.Context, userID string) ([]*entity.Loan, error) {
	query := `
		SELECT id, resource_id, user_id, created_at, due_at, returned_at, renewals
		FROM loans
		WHERE user_id = $1 AND returned_at IS NULL
		ORDER BY due_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

func (r *loanRepository) GetActiveByResource(ctx context.Context, resourceID string) (*entity.Loan, error) {
	query := `
		SELECT id, resource_id, user_id, created_at, due_at, returned_at, renewals
		FROM loans
		WHERE resource_id = $1 AND returned_at IS NULL
		LIMIT 1
	`

	var loan entity.Loan
	err := r.db.QueryRowContext(ctx, query, resourceID).Scan(
		&loan.ID,
		&loan.ResourceID,
		&loan.UserID,
		&loan.CreatedAt,
		&loan.DueAt,
		&loan.ReturnedAt,
		&loan.Renewals,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) GetOverdue(ctx context.Context, asOf time.Time) ([]*entity.Loan, error) {
	query := `
		SELECT id, resource_id, user_id, created_at, due_at, returned_at, renewals
		FROM loans
		WHERE returned_at IS NULL AND due_at < $1
		ORDER BY due_at
	`

	rows, err := r.db.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

func (r *loanRepository) GetDueOn(ctx context.Context, day time.Time) ([]*entity.Loan, error) {
	query := `
		SELECT id, resource_id, user_id, created_at, due_at, returned_at, renewals
		FROM loans
		WHERE returned_at IS NULL AND due_at::date = $1::date
		ORDER BY due_at
	`

	rows, err := r.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

func (r *loanRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM loans WHERE user_id = $1 AND returned_at IS NULL`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}

func scanLoans(rows *sql.Rows) ([]*entity.Loan, error) {
	var loans []*entity.Loan
	for rows.Next() {
		var loan entity.Loan
		err := rows.Scan(
			&loan.ID,
			&loan.ResourceID,
			&loan.UserID,
			&loan.CreatedAt,
			&loan.DueAt,
			&loan.ReturnedAt,
			&loan.Renewals,
		)
		if err != nil {
			return nil, err
		}
		loans = append(loans, &loan)
	}

	return loans, rows.Err()
}
