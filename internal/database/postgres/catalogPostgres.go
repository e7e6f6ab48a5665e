package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type catalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) Create(ctx context.Context, resource *entity.Resource) error {
	query := `
		INSERT INTO resources (id, title, author, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		resource.ID,
		resource.Title,
		resource.Author,
		resource.Category,
		resource.Status,
		resource.CreatedAt,
	)
	return err
}

func (r *catalogRepository) GetByID(ctx context.Context, id string) (*entity.Resource, error) {
	query := `
		SELECT id, title, author, category, status, created_at
		FROM resources
		WHERE id = $1
	`

	var resource entity.Resource
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&resource.ID,
		&resource.Title,
		&resource.Author,
		&resource.Category,
		&resource.Status,
		&resource.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}

	return &resource, nil
}

func (r *catalogRepository) Update(ctx context.Context, resource *entity.Resource) error {
	query := `
		UPDATE resources
		SET title = $2, author = $3, category = $4, status = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		resource.ID,
		resource.Title,
		resource.Author,
		resource.Category,
		resource.Status,
	)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

func (r *catalogRepository) UpdateStatus(ctx context.Context, id string, status entity.ResourceStatus) error {
	query := `UPDATE resources SET status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

func (r *catalogRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM resources WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

func (r *catalogRepository) GetAll(ctx context.Context) ([]*entity.Resource, error) {
	query := `
		SELECT id, title, author, category, status, created_at
		FROM resources
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResources(rows)
}

func (r *catalogRepository) GetByStatus(ctx context.Context, status entity.ResourceStatus) ([]*entity.Resource, error) {
	query := `
		SELECT id, title, author, category, status, created_at
		FROM resources
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResources(rows)
}

func (r *catalogRepository) SearchByTitle(ctx context.Context, title string) ([]*entity.Resource, error) {
	query := `
		SELECT id, title, author, category, status, created_at
		FROM resources
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY title
	`

	rows, err := r.db.QueryContext(ctx, query, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResources(rows)
}

func scanResources(rows *sql.Rows) ([]*entity.Resource, error) {
	var resources []*entity.Resource
	for rows.Next() {
		var resource entity.Resource
		err := rows.Scan(
			&resource.ID,
			&resource.Title,
			&resource.Author,
			&resource.Category,
			&resource.Status,
			&resource.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		resources = append(resources, &resource)
	}

	return resources, rows.Err()
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.ErrResourceNotFound
	}
	return nil
}
