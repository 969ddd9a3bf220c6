package service

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/friden-zhang/raspi-todo/internal/cache"
	dom "github.com/friden-zhang/raspi-todo/internal/domain"
	"github.com/friden-zhang/raspi-todo/internal/hub"
	"github.com/friden-zhang/raspi-todo/internal/repo"
)

type CreateCategoryInput struct {
	Name        string
	Color       *string
	Description *string
	SortOrder   *int
}

type CategoryService struct {
	categories repo.CategoryRepo
	todos      repo.TodoRepo
	sf         singleflight.Group
	notifier
}

func NewCategoryService(categories repo.CategoryRepo, todos repo.TodoRepo, c *cache.ListCache, pub Publisher, logger *log.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		todos:      todos,
		notifier:   newNotifier(c, pub, logger),
	}
}

func (s *CategoryService) Create(ctx context.Context, in CreateCategoryInput) (dom.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return dom.Category{}, ErrEmptyName
	}
	now := s.timestamp()
	c := dom.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Color:       in.Color,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.SortOrder != nil {
		if !validSortOrder(*in.SortOrder) {
			return dom.Category{}, ErrInvalidSortOrder
		}
		c.SortOrder = *in.SortOrder
	}
	if err := s.categories.Insert(ctx, c); err != nil {
		return dom.Category{}, fromRepo(err)
	}
	s.invalidateCategories(ctx)
	s.publish(hub.CategoryCreated, c)
	return c, nil
}

func (s *CategoryService) List(ctx context.Context, includeDeleted bool) ([]dom.Category, error) {
	if s.cache == nil {
		return s.categories.List(ctx, includeDeleted)
	}
	gen, err := s.cache.CategoryGeneration(ctx)
	if err != nil {
		s.logger.Debug("category cache generation read failed", "err", err)
		return s.categories.List(ctx, includeDeleted)
	}
	key := cache.CategoryListKey(gen, includeDeleted)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		list, err := s.cache.GetCategories(ctx, gen, includeDeleted)
		if err == nil && list != nil {
			return list, nil
		}
		if err != nil {
			s.logger.Debug("category cache read failed", "key", key, "err", err)
		}
		list, err = s.categories.List(ctx, includeDeleted)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetCategories(ctx, gen, includeDeleted, list); err != nil {
			s.logger.Debug("category cache write failed", "key", key, "err", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Category), nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (dom.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return dom.Category{}, fromRepo(err)
	}
	return c, nil
}

// Update applies the fields set in p. Setting deleted goes through the same in-use
// guard as Delete.
func (s *CategoryService) Update(ctx context.Context, id string, p dom.CategoryPatch) (dom.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return dom.Category{}, fromRepo(err)
	}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
		if c.Name == "" {
			return dom.Category{}, ErrEmptyName
		}
	}
	if p.Color != nil {
		c.Color = p.Color
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.SortOrder != nil {
		if !validSortOrder(*p.SortOrder) {
			return dom.Category{}, ErrInvalidSortOrder
		}
		c.SortOrder = *p.SortOrder
	}
	retiring := p.Deleted != nil && *p.Deleted && !c.Deleted
	if retiring {
		if err := s.ensureUnused(ctx, id); err != nil {
			return dom.Category{}, err
		}
	}
	if p.Deleted != nil {
		c.Deleted = *p.Deleted
	}
	c, err = s.replace(ctx, c, retiring)
	if err != nil {
		return dom.Category{}, err
	}
	s.publish(hub.CategoryUpdated, c)
	return c, nil
}

// Delete soft-deletes the category unless an active todo still references it.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if err := s.ensureUnused(ctx, id); err != nil {
		return err
	}
	c.Deleted = true
	if _, err := s.replace(ctx, c, true); err != nil {
		return err
	}
	s.publish(hub.CategoryDeleted, hub.IDPayload{ID: id})
	return nil
}

// ensureUnused rejects the delete before anything is written. The guarded write in
// replace rechecks in the same statement for todos created in between.
func (s *CategoryService) ensureUnused(ctx context.Context, id string) error {
	n, err := s.todos.CountActiveByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCategoryInUse
	}
	return nil
}

// replace persists c with a fresh updated_at. guarded makes the write conditional on
// the category having no active todos.
func (s *CategoryService) replace(ctx context.Context, c dom.Category, guarded bool) (dom.Category, error) {
	c.UpdatedAt = laterOf(s.timestamp(), c.CreatedAt)
	write := s.categories.Replace
	if guarded {
		write = s.categories.ReplaceIfUnused
	}
	if err := write(ctx, c); err != nil {
		return dom.Category{}, fromRepo(err)
	}
	s.invalidateCategories(ctx)
	return c, nil
}
