// Package migrations bootstraps the schema: embedded goose migrations, the
// additive category_id column check for databases created before categories
// existed, and the default category seed.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

type CategorySeed struct {
	Name        string
	Color       string
	Description string
}

// DefaultCategories are inserted on first boot, when no active category exists.
var DefaultCategories = []CategorySeed{
	{"General", "#6B7280", "General tasks and items"},
	{"Work", "#3B82F6", "Work-related tasks"},
	{"Personal", "#EF4444", "Personal tasks and reminders"},
	{"Shopping", "#10B981", "Shopping lists and items"},
	{"Health", "#F59E0B", "Health and fitness related"},
}

// Bootstrap is idempotent: safe to run on every start.
func Bootstrap(ctx context.Context, db *sql.DB, logger *log.Logger) error {
	if err := Up(ctx, db, logger); err != nil {
		return err
	}
	added, err := EnsureCategoryColumn(ctx, db)
	if err != nil {
		return err
	}
	if added {
		logger.Info("added todos.category_id column")
	}
	n, err := SeedDefaultCategories(ctx, db, time.Now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("seeded default categories", "count", n)
	}
	return nil
}

// Up applies the embedded goose migrations.
func Up(ctx context.Context, db *sql.DB, logger *log.Logger) error {
	goose.SetBaseFS(embedded)
	goose.SetLogger(logger.StandardLog())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// EnsureCategoryColumn adds todos.category_id when an older todos table lacks it.
func EnsureCategoryColumn(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'todos' AND column_name = 'category_id'`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category_id column: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE todos ADD COLUMN category_id TEXT REFERENCES categories (id)`); err != nil {
		return false, fmt.Errorf("add category_id column: %w", err)
	}
	return true, nil
}

// SeedDefaultCategories inserts DefaultCategories in one transaction when no
// active category exists. It returns the number of rows inserted.
func SeedDefaultCategories(ctx context.Context, db *sql.DB, now time.Time) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE deleted = FALSE`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range DefaultCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, color, description, sort_order, created_at, updated_at, deleted)
			VALUES ($1, $2, $3, $4, 0, $5, $6, FALSE)`,
			uuid.NewString(), c.Name, c.Color, c.Description, now, now,
		); err != nil {
			return 0, fmt.Errorf("seed %s: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed commit: %w", err)
	}
	return len(DefaultCategories), nil
}
