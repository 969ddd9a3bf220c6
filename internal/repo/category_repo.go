package repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	dom "github.com/friden-zhang/raspi-todo/internal/domain"
)

const categoriesTable = "categories"

var categoryColumns = []string{
	"id", "name", "color", "description", "sort_order", "created_at", "updated_at", "deleted",
}

type CategoryRepo interface {
	List(ctx context.Context, includeDeleted bool) ([]dom.Category, error)
	GetByID(ctx context.Context, id string) (dom.Category, error)
	Insert(ctx context.Context, c dom.Category) error
	Replace(ctx context.Context, c dom.Category) error
	// ReplaceIfUnused is Replace that fails with ErrInUse while an active todo
	// references the category.
	ReplaceIfUnused(ctx context.Context, c dom.Category) error
}

type PGCategoryRepo struct {
	db DB
}

func NewPGCategoryRepo(db DB) *PGCategoryRepo {
	return &PGCategoryRepo{db: db}
}

func scanCategory(row rowScanner) (dom.Category, error) {
	var c dom.Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Color, &c.Description, &c.SortOrder,
		&c.CreatedAt, &c.UpdatedAt, &c.Deleted,
	)
	return c, err
}

func (r *PGCategoryRepo) List(ctx context.Context, includeDeleted bool) ([]dom.Category, error) {
	q := psql.Select(categoryColumns...).From(categoriesTable)
	if !includeDeleted {
		q = q.Where(sq.Eq{"deleted": false})
	}
	query, args, err := q.OrderBy("sort_order ASC", "name ASC").ToSql()
	if err != nil {
		return nil, wrapErr(err, "list", categoriesTable)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, "list", categoriesTable)
	}
	defer rows.Close()
	list := make([]dom.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrapErr(err, "list", categoriesTable)
		}
		list = append(list, c)
	}
	return list, wrapErr(rows.Err(), "list", categoriesTable)
}

func (r *PGCategoryRepo) GetByID(ctx context.Context, id string) (dom.Category, error) {
	query := `
		SELECT id, name, color, description, sort_order, created_at, updated_at, deleted
		FROM categories WHERE id = $1`
	c, err := scanCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return dom.Category{}, wrapErr(err, "get", categoriesTable)
	}
	return c, nil
}

func (r *PGCategoryRepo) Insert(ctx context.Context, c dom.Category) error {
	query := `
		INSERT INTO categories (id, name, color, description, sort_order, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.Name, c.Color, c.Description, c.SortOrder, c.CreatedAt, c.UpdatedAt, c.Deleted,
	)
	return wrapErr(err, "insert", categoriesTable)
}

func (r *PGCategoryRepo) Replace(ctx context.Context, c dom.Category) error {
	query := `
		UPDATE categories SET name = $2, color = $3, description = $4, sort_order = $5, updated_at = $6, deleted = $7
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		c.ID, c.Name, c.Color, c.Description, c.SortOrder, c.UpdatedAt, c.Deleted,
	)
	if err != nil {
		return wrapErr(err, "replace", categoriesTable)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceIfUnused checks for active todos in the same statement as the write, so a
// todo committed before it is always seen.
func (r *PGCategoryRepo) ReplaceIfUnused(ctx context.Context, c dom.Category) error {
	query := `
		UPDATE categories SET name = $2, color = $3, description = $4, sort_order = $5, updated_at = $6, deleted = $7
		WHERE id = $1
			AND NOT EXISTS (SELECT 1 FROM todos WHERE category_id = $1 AND deleted = FALSE)`
	tag, err := r.db.Exec(ctx, query,
		c.ID, c.Name, c.Color, c.Description, c.SortOrder, c.UpdatedAt, c.Deleted,
	)
	if err != nil {
		return wrapErr(err, "replace", categoriesTable)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, c.ID).Scan(&exists)
	if err != nil {
		return wrapErr(err, "replace", categoriesTable)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInUse
}
