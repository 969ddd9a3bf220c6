package repo

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	dom "github.com/friden-zhang/raspi-todo/internal/domain"
)

const todosTable = "todos"

var todoColumns = []string{
	"id", "title", "note", "status", "priority", "due_at", "tags",
	"category_id", "sort_order", "created_at", "updated_at", "deleted",
}

// TodoFilter narrows List. Empty Status means any status.
type TodoFilter struct {
	Status         string
	IncludeDeleted bool
}

type TodoRepo interface {
	List(ctx context.Context, f TodoFilter) ([]dom.Todo, error)
	GetByID(ctx context.Context, id string) (dom.Todo, error)
	Insert(ctx context.Context, t dom.Todo) error
	Replace(ctx context.Context, t dom.Todo) error
	Reorder(ctx context.Context, items []dom.ReorderItem, at time.Time) error
	CountActiveByCategory(ctx context.Context, categoryID string) (int, error)
}

type PGTodoRepo struct {
	db DB
}

func NewPGTodoRepo(db DB) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (dom.Todo, error) {
	var t dom.Todo
	err := row.Scan(
		&t.ID, &t.Title, &t.Note, &t.Status, &t.Priority, &t.DueAt, &t.Tags,
		&t.CategoryID, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt, &t.Deleted,
	)
	return t, err
}

// listTodosQuery orders by priority desc, due date asc with missing dates last,
// then manual sort order and creation time.
func listTodosQuery(f TodoFilter) (string, []any, error) {
	q := psql.Select(todoColumns...).From(todosTable)
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if !f.IncludeDeleted {
		q = q.Where(sq.Eq{"deleted": false})
	}
	return q.OrderBy(
		"priority DESC",
		"due_at ASC NULLS LAST",
		"sort_order ASC",
		"created_at ASC",
	).ToSql()
}

func (r *PGTodoRepo) List(ctx context.Context, f TodoFilter) ([]dom.Todo, error) {
	query, args, err := listTodosQuery(f)
	if err != nil {
		return nil, wrapErr(err, "list", todosTable)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, "list", todosTable)
	}
	defer rows.Close()
	list := make([]dom.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, wrapErr(err, "list", todosTable)
		}
		list = append(list, t)
	}
	return list, wrapErr(rows.Err(), "list", todosTable)
}

// GetByID ignores the deleted flag: soft-deleted todos stay addressable.
func (r *PGTodoRepo) GetByID(ctx context.Context, id string) (dom.Todo, error) {
	query := `
		SELECT id, title, note, status, priority, due_at, tags, category_id, sort_order, created_at, updated_at, deleted
		FROM todos WHERE id = $1`
	t, err := scanTodo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return dom.Todo{}, wrapErr(err, "get", todosTable)
	}
	return t, nil
}

func (r *PGTodoRepo) Insert(ctx context.Context, t dom.Todo) error {
	query := `
		INSERT INTO todos (id, title, note, status, priority, due_at, tags, category_id, sort_order, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.Title, t.Note, t.Status, t.Priority, t.DueAt, t.Tags,
		t.CategoryID, t.SortOrder, t.CreatedAt, t.UpdatedAt, t.Deleted,
	)
	return wrapErr(err, "insert", todosTable)
}

// Replace overwrites every mutable column of the row with id t.ID.
func (r *PGTodoRepo) Replace(ctx context.Context, t dom.Todo) error {
	query := `
		UPDATE todos SET title = $2, note = $3, status = $4, priority = $5, due_at = $6, tags = $7,
			category_id = $8, sort_order = $9, updated_at = $10, deleted = $11
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		t.ID, t.Title, t.Note, t.Status, t.Priority, t.DueAt, t.Tags,
		t.CategoryID, t.SortOrder, t.UpdatedAt, t.Deleted,
	)
	if err != nil {
		return wrapErr(err, "replace", todosTable)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder applies every item in one transaction. An id matching no row rolls the
// whole batch back with ErrNotFound.
func (r *PGTodoRepo) Reorder(ctx context.Context, items []dom.ReorderItem, at time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return wrapErr(err, "reorder", todosTable)
	}
	for _, it := range items {
		tag, err := tx.Exec(ctx, `UPDATE todos SET sort_order = $2, updated_at = $3 WHERE id = $1`, it.ID, it.SortOrder, at)
		if err == nil && tag.RowsAffected() == 0 {
			err = ErrNotFound
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return wrapErr(err, "reorder", todosTable)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr(err, "reorder", todosTable)
	}
	return nil
}

func (r *PGTodoRepo) CountActiveByCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM todos WHERE category_id = $1 AND deleted = FALSE`,
		categoryID,
	).Scan(&n)
	return n, wrapErr(err, "count", todosTable)
}
