package postgres

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bookstack-dev/library-reservations/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS resources (
			id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			author VARCHAR(255),
			category VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'available',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			phone VARCHAR(50),
			telegram_id VARCHAR(100),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS loans (
			id UUID PRIMARY KEY,
			resource_id UUID REFERENCES resources(id),
			user_id UUID REFERENCES users(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			due_at TIMESTAMP NOT NULL,
			returned_at TIMESTAMP,
			renewals INTEGER NOT NULL DEFAULT 0
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_resources_status ON resources(status)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_resource_id ON loans(resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user_id ON loans(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_due_at ON loans(due_at) WHERE returned_at IS NULL`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	logrus.Info("database migrations completed")
	return nil
}
