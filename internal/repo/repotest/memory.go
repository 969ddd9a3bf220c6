// Package repotest provides in-memory implementations of the repo interfaces
// with the same ordering, filtering and error semantics as the Postgres ones.
package repotest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	dom "github.com/friden-zhang/raspi-todo/internal/domain"
	"github.com/friden-zhang/raspi-todo/internal/repo"
)

// Store holds todos and categories in memory. It implements both
// repo.TodoRepo (via Todos) and repo.CategoryRepo (via Categories).
type Store struct {
	mu         sync.Mutex
	todos      map[string]dom.Todo
	categories map[string]dom.Category
	seq        map[string]int // insertion order, tiebreak for equal created_at

	// FailReorderAt makes Reorder fail when it reaches the item with this id.
	FailReorderAt string
	// Err, when set, is returned by every operation.
	Err error
}

func New() *Store {
	return &Store{
		todos:      make(map[string]dom.Todo),
		categories: make(map[string]dom.Category),
		seq:        make(map[string]int),
	}
}

func (s *Store) Todos() repo.TodoRepo { return todoRepo{s} }

func (s *Store) Categories() repo.CategoryRepo { return categoryRepo{s} }

// Todo returns the stored row, bypassing the repo interface.
func (s *Store) Todo(id string) (dom.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	return t, ok
}

func (s *Store) Category(id string) (dom.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	return c, ok
}

type todoRepo struct{ s *Store }

func (r todoRepo) List(_ context.Context, f repo.TodoFilter) ([]dom.Todo, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	list := make([]dom.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if !f.IncludeDeleted && t.Deleted {
			continue
		}
		list = append(list, t)
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if da, db := dueKey(a), dueKey(b); !da.Equal(db) {
			return da.Before(db)
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})
	return list, nil
}

var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func dueKey(t dom.Todo) time.Time {
	if t.DueAt == nil {
		return farFuture
	}
	return *t.DueAt
}

func (r todoRepo) GetByID(_ context.Context, id string) (dom.Todo, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return dom.Todo{}, s.Err
	}
	t, ok := s.todos[id]
	if !ok {
		return dom.Todo{}, repo.ErrNotFound
	}
	return t, nil
}

func (r todoRepo) Insert(_ context.Context, t dom.Todo) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.todos[t.ID]; ok {
		return &repo.StorageError{Op: "insert", Table: "todos", Err: repo.ErrConflict}
	}
	s.todos[t.ID] = t
	s.seq[t.ID] = len(s.seq)
	return nil
}

func (r todoRepo) Replace(_ context.Context, t dom.Todo) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	old, ok := s.todos[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	t.CreatedAt = old.CreatedAt
	s.todos[t.ID] = t
	return nil
}

func (r todoRepo) Reorder(_ context.Context, items []dom.ReorderItem, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	staged := make(map[string]dom.Todo, len(items))
	for _, it := range items {
		if it.ID == s.FailReorderAt {
			return &repo.StorageError{Op: "reorder", Table: "todos", Err: errInjected}
		}
		t, ok := staged[it.ID]
		if !ok {
			if t, ok = s.todos[it.ID]; !ok {
				return repo.ErrNotFound
			}
		}
		t.SortOrder = it.SortOrder
		t.UpdatedAt = at
		staged[it.ID] = t
	}
	for id, t := range staged {
		s.todos[id] = t
	}
	return nil
}

func (r todoRepo) CountActiveByCategory(_ context.Context, categoryID string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return s.activeInCategory(categoryID), nil
}

// activeInCategory counts live todos in the category. Callers hold s.mu.
func (s *Store) activeInCategory(categoryID string) int {
	n := 0
	for _, t := range s.todos {
		if !t.Deleted && t.CategoryID != nil && *t.CategoryID == categoryID {
			n++
		}
	}
	return n
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) List(_ context.Context, includeDeleted bool) ([]dom.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	list := make([]dom.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if !includeDeleted && c.Deleted {
			continue
		}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (r categoryRepo) GetByID(_ context.Context, id string) (dom.Category, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return dom.Category{}, s.Err
	}
	c, ok := s.categories[id]
	if !ok {
		return dom.Category{}, repo.ErrNotFound
	}
	return c, nil
}

func (r categoryRepo) Insert(_ context.Context, c dom.Category) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.categories[c.ID]; ok {
		return &repo.StorageError{Op: "insert", Table: "categories", Err: repo.ErrConflict}
	}
	s.categories[c.ID] = c
	return nil
}

func (r categoryRepo) Replace(_ context.Context, c dom.Category) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	old, ok := s.categories[c.ID]
	if !ok {
		return repo.ErrNotFound
	}
	c.CreatedAt = old.CreatedAt
	s.categories[c.ID] = c
	return nil
}

// ReplaceIfUnused checks and writes under one lock, like the single Postgres statement.
func (r categoryRepo) ReplaceIfUnused(_ context.Context, c dom.Category) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	old, ok := s.categories[c.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if s.activeInCategory(c.ID) > 0 {
		return repo.ErrInUse
	}
	c.CreatedAt = old.CreatedAt
	s.categories[c.ID] = c
	return nil
}

var errInjected = errors.New("repotest: injected failure")
