package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/friden-zhang/raspi-todo/internal/cache"
	dom "github.com/friden-zhang/raspi-todo/internal/domain"
	"github.com/friden-zhang/raspi-todo/internal/hub"
	"github.com/friden-zhang/raspi-todo/internal/repo"
)

// CreateTodoInput carries a new todo. Nil optional fields take their defaults.
type CreateTodoInput struct {
	Title      string
	Note       *string
	Status     *string
	Priority   *int
	DueAt      *time.Time
	Tags       *string
	CategoryID *string
	SortOrder  *int
}

type TodoService struct {
	todos      repo.TodoRepo
	categories repo.CategoryRepo
	sf         singleflight.Group
	notifier
}

// NewTodoService creates a TodoService. If c is nil, caching is disabled.
func NewTodoService(todos repo.TodoRepo, categories repo.CategoryRepo, c *cache.ListCache, pub Publisher, logger *log.Logger) *TodoService {
	return &TodoService{
		todos:      todos,
		categories: categories,
		notifier:   newNotifier(c, pub, logger),
	}
}

func (s *TodoService) Create(ctx context.Context, in CreateTodoInput) (dom.Todo, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return dom.Todo{}, ErrEmptyTitle
	}
	t := dom.Todo{
		ID:       uuid.NewString(),
		Title:    title,
		Note:     in.Note,
		Status:   dom.StatusTodo,
		Priority: dom.DefaultPriority,
		DueAt:    truncate(in.DueAt),
		Tags:     in.Tags,
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.SortOrder != nil {
		t.SortOrder = *in.SortOrder
	}
	if in.CategoryID != nil && *in.CategoryID != "" {
		id := *in.CategoryID
		t.CategoryID = &id
	}
	if err := s.validate(ctx, t); err != nil {
		return dom.Todo{}, err
	}

	now := s.timestamp()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.todos.Insert(ctx, t); err != nil {
		return dom.Todo{}, fromRepo(err)
	}
	s.invalidateTodos(ctx)
	s.publish(hub.TodoCreated, t)
	return t, nil
}

// List serves from the cache when configured; concurrent misses for the same filter
// and generation share one store query.
func (s *TodoService) List(ctx context.Context, f repo.TodoFilter) ([]dom.Todo, error) {
	if s.cache == nil {
		return s.todos.List(ctx, f)
	}
	gen, err := s.cache.TodoGeneration(ctx)
	if err != nil {
		s.logger.Debug("todo cache generation read failed", "err", err)
		return s.todos.List(ctx, f)
	}
	key := cache.TodoListKey(gen, f)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		list, err := s.cache.GetTodos(ctx, gen, f)
		if err == nil && list != nil {
			return list, nil
		}
		if err != nil {
			s.logger.Debug("todo cache read failed", "key", key, "err", err)
		}
		list, err = s.todos.List(ctx, f)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetTodos(ctx, gen, f, list); err != nil {
			s.logger.Debug("todo cache write failed", "key", key, "err", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Todo), nil
}

func (s *TodoService) Get(ctx context.Context, id string) (dom.Todo, error) {
	t, err := s.todos.GetByID(ctx, id)
	if err != nil {
		return dom.Todo{}, fromRepo(err)
	}
	return t, nil
}

// Update applies only the fields set in p and always refreshes updated_at.
func (s *TodoService) Update(ctx context.Context, id string, p dom.TodoPatch) (dom.Todo, error) {
	t, err := s.todos.GetByID(ctx, id)
	if err != nil {
		return dom.Todo{}, fromRepo(err)
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Note != nil {
		t.Note = p.Note
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueAt != nil {
		t.DueAt = truncate(p.DueAt)
	}
	if p.Tags != nil {
		t.Tags = p.Tags
	}
	if p.CategoryID != nil {
		if *p.CategoryID == "" {
			t.CategoryID = nil
		} else {
			cid := *p.CategoryID
			t.CategoryID = &cid
		}
	}
	if p.SortOrder != nil {
		t.SortOrder = *p.SortOrder
	}
	if p.Deleted != nil {
		t.Deleted = *p.Deleted
	}
	if err := s.validate(ctx, t); err != nil {
		return dom.Todo{}, err
	}
	t, err = s.replace(ctx, t)
	if err != nil {
		return dom.Todo{}, err
	}
	s.publish(hub.TodoUpdated, t)
	return t, nil
}

// UpdateStatus is Update restricted to the status field.
func (s *TodoService) UpdateStatus(ctx context.Context, id, status string) (dom.Todo, error) {
	if status == "" {
		return dom.Todo{}, ErrMissingStatus
	}
	return s.Update(ctx, id, dom.TodoPatch{Status: &status})
}

// Delete soft-deletes the todo. Deleting an already deleted todo succeeds again.
func (s *TodoService) Delete(ctx context.Context, id string) error {
	t, err := s.todos.GetByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	t.Deleted = true
	if _, err := s.replace(ctx, t); err != nil {
		return err
	}
	s.publish(hub.TodoDeleted, hub.IDPayload{ID: id})
	return nil
}

// Reorder applies every item or none, then publishes the applied batch once.
func (s *TodoService) Reorder(ctx context.Context, items []dom.ReorderItem) error {
	if len(items) == 0 {
		return ErrInvalidReorder
	}
	for _, it := range items {
		if it.ID == "" {
			return ErrInvalidReorder
		}
		if !validSortOrder(it.SortOrder) {
			return ErrInvalidSortOrder
		}
	}
	if err := s.todos.Reorder(ctx, items, s.timestamp()); err != nil {
		return fromRepo(err)
	}
	s.invalidateTodos(ctx)
	s.publish(hub.TodosReordered, items)
	return nil
}

// replace persists t with a fresh updated_at and drops cached lists.
func (s *TodoService) replace(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	t.UpdatedAt = laterOf(s.timestamp(), t.CreatedAt)
	if err := s.todos.Replace(ctx, t); err != nil {
		return dom.Todo{}, fromRepo(err)
	}
	s.invalidateTodos(ctx)
	return t, nil
}

func (s *TodoService) validate(ctx context.Context, t dom.Todo) error {
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if !dom.ValidStatus(t.Status) {
		return ErrInvalidStatus
	}
	if t.Priority < dom.MinPriority || t.Priority > dom.MaxPriority {
		return ErrInvalidPriority
	}
	if !validSortOrder(t.SortOrder) {
		return ErrInvalidSortOrder
	}
	if t.CategoryID == nil {
		return nil
	}
	c, err := s.categories.GetByID(ctx, *t.CategoryID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && c.Deleted) {
		return ErrUnknownCategory
	}
	return err
}
