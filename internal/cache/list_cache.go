package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	dom "github.com/friden-zhang/raspi-todo/internal/domain"
	"github.com/friden-zhang/raspi-todo/internal/repo"
)

const (
	keyTodoList     = "todo:list:"
	keyCategoryList = "category:list:"
	keyTodoGen      = "todo:gen"
	keyCategoryGen  = "category:gen"
)

// ListCache caches todo and category list results in Redis. Every list key embeds
// the family's generation; a write bumps the generation instead of deleting keys,
// so a list computed before the write can only land under a key nobody reads.
// Old generations expire with the TTL.
type ListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewListCache returns a new ListCache.
func NewListCache(rdb *redis.Client, ttl time.Duration) *ListCache {
	return &ListCache{rdb: rdb, ttl: ttl}
}

// TodoListKey is unique per generation and filter: todo:list:<gen>:<status>:<include_deleted>.
func TodoListKey(gen int64, f repo.TodoFilter) string {
	return keyTodoList + strconv.FormatInt(gen, 10) + ":" + f.Status + ":" + strconv.FormatBool(f.IncludeDeleted)
}

func CategoryListKey(gen int64, includeDeleted bool) string {
	return keyCategoryList + strconv.FormatInt(gen, 10) + ":" + strconv.FormatBool(includeDeleted)
}

// TodoGeneration returns the current todo generation. Read it before querying the
// store and pass it to GetTodos and SetTodos.
func (c *ListCache) TodoGeneration(ctx context.Context) (int64, error) {
	return c.generation(ctx, keyTodoGen)
}

func (c *ListCache) CategoryGeneration(ctx context.Context) (int64, error) {
	return c.generation(ctx, keyCategoryGen)
}

// GetTodos returns the cached list or nil on a miss. A cached empty list comes back
// as a non-nil empty slice.
func (c *ListCache) GetTodos(ctx context.Context, gen int64, f repo.TodoFilter) ([]dom.Todo, error) {
	return get[dom.Todo](ctx, c.rdb, TodoListKey(gen, f))
}

func (c *ListCache) SetTodos(ctx context.Context, gen int64, f repo.TodoFilter, list []dom.Todo) error {
	return c.set(ctx, TodoListKey(gen, f), list)
}

// GetCategories returns the cached list or nil on a miss.
func (c *ListCache) GetCategories(ctx context.Context, gen int64, includeDeleted bool) ([]dom.Category, error) {
	return get[dom.Category](ctx, c.rdb, CategoryListKey(gen, includeDeleted))
}

func (c *ListCache) SetCategories(ctx context.Context, gen int64, includeDeleted bool, list []dom.Category) error {
	return c.set(ctx, CategoryListKey(gen, includeDeleted), list)
}

// InvalidateTodos moves the todo family to a new generation.
func (c *ListCache) InvalidateTodos(ctx context.Context) error {
	return c.rdb.Incr(ctx, keyTodoGen).Err()
}

func (c *ListCache) InvalidateCategories(ctx context.Context) error {
	return c.rdb.Incr(ctx, keyCategoryGen).Err()
}

func (c *ListCache) generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *ListCache) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func get[T any](ctx context.Context, rdb *redis.Client, key string) ([]T, error) {
	b, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := make([]T, 0)
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}
