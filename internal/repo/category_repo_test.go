package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dom "github.com/friden-zhang/raspi-todo/internal/domain"
)

func TestPGCategoryRepoList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM categories WHERE deleted = \$1 ORDER BY sort_order ASC, name ASC`).
		WithArgs(false).
		WillReturnRows(pgxmock.NewRows(categoryColumns).
			AddRow("c1", "General", strPtr("#6B7280"), strPtr("General tasks and items"), 0, now, now, false).
			AddRow("c2", "Work", nil, nil, 1, now, now, false))
	mock.ExpectQuery(`SELECT .* FROM categories ORDER BY sort_order ASC, name ASC`).
		WillReturnRows(pgxmock.NewRows(categoryColumns))

	r := NewPGCategoryRepo(mock)
	list, err := r.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "#6B7280", *list[0].Color)
	assert.Nil(t, list[1].Description)

	all, err := r.List(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCategoryRepoGetAndReplace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM categories WHERE id = \$1`).WithArgs("x").WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`UPDATE categories SET name = \$2`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO categories`).WillReturnError(errors.New("connection reset"))

	r := NewPGCategoryRepo(mock)
	_, err = r.GetByID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.Replace(context.Background(), dom.Category{ID: "x", Name: "n"}), ErrNotFound)

	err = r.Insert(context.Background(), dom.Category{ID: "y", Name: "n"})
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "categories", se.Table)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCategoryRepoReplaceIfUnused(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	guard := `AND NOT EXISTS \(SELECT 1 FROM todos WHERE category_id = \$1 AND deleted = FALSE\)`
	exists := `SELECT EXISTS \(SELECT 1 FROM categories WHERE id = \$1\)`

	mock.ExpectExec(guard).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(guard).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(exists).WithArgs("busy").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(guard).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(exists).WithArgs("ghost").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	r := NewPGCategoryRepo(mock)
	ctx := context.Background()
	assert.NoError(t, r.ReplaceIfUnused(ctx, dom.Category{ID: "free", Name: "n", Deleted: true}))
	assert.ErrorIs(t, r.ReplaceIfUnused(ctx, dom.Category{ID: "busy", Name: "n", Deleted: true}), ErrInUse)
	assert.ErrorIs(t, r.ReplaceIfUnused(ctx, dom.Category{ID: "ghost", Name: "n", Deleted: true}), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
