package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friden-zhang/raspi-todo/internal/dto"
	"github.com/friden-zhang/raspi-todo/internal/hub"
	"github.com/friden-zhang/raspi-todo/internal/logger"
	"github.com/friden-zhang/raspi-todo/internal/repo/repotest"
	"github.com/friden-zhang/raspi-todo/internal/service"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testAPI struct {
	router *gin.Engine
	store  *repotest.Store
	hub    *hub.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repotest.New()
	h := hub.New(64)
	log := logger.Discard()

	todos := NewTodoHandler(service.NewTodoService(store.Todos(), store.Categories(), nil, h, log))
	categories := NewCategoryHandler(service.NewCategoryService(store.Categories(), store.Todos(), nil, h, log))
	health := NewHealthHandler(pingFunc(func(context.Context) error { return nil }))

	r := gin.New()
	api := r.Group("/api")
	api.GET("/health", health.Health)
	api.GET("/todos", todos.List)
	api.POST("/todos", todos.Create)
	api.POST("/todos/reorder", todos.Reorder)
	api.GET("/todos/:id", todos.GetByID)
	api.PUT("/todos/:id", todos.Update)
	api.PATCH("/todos/:id/status", todos.UpdateStatus)
	api.DELETE("/todos/:id", todos.Delete)
	api.GET("/categories", categories.List)
	api.POST("/categories", categories.Create)
	api.GET("/categories/:id", categories.GetByID)
	api.PUT("/categories/:id", categories.Update)
	api.DELETE("/categories/:id", categories.Delete)
	return &testAPI{router: r, store: store, hub: h}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestTodoLifecycle(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/todos", map[string]any{
		"title": "water plants", "priority": 2, "due_at": "2026-07-01", "tags": "home",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.TodoResponse](t, w)
	assert.Equal(t, "todo", created.Status)
	assert.Equal(t, 2, created.Priority)
	require.NotNil(t, created.DueAt)
	assert.Equal(t, "2026-07-01T00:00:00Z", created.DueAt.Format("2006-01-02T15:04:05Z07:00"))

	w = api.do(t, http.MethodGet, "/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[dto.TodoResponse](t, w).ID)

	w = api.do(t, http.MethodPut, "/api/todos/"+created.ID, map[string]any{"note": "twice"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[dto.TodoResponse](t, w)
	require.NotNil(t, updated.Note)
	assert.Equal(t, "twice", *updated.Note)
	assert.Equal(t, "water plants", updated.Title)

	w = api.do(t, http.MethodPatch, "/api/todos/"+created.ID+"/status?status=done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "done", decode[dto.TodoResponse](t, w).Status)

	w = api.do(t, http.MethodDelete, "/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/todos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/todos?include_deleted=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]dto.TodoResponse](t, w)
	require.Len(t, list, 1)
	assert.True(t, list[0].Deleted)
}

func TestTodoErrors(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[dto.TodoResponse](t, w).ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"missing title", http.MethodPost, "/api/todos", map[string]any{"note": "n"}, http.StatusBadRequest},
		{"blank title", http.MethodPost, "/api/todos", map[string]any{"title": "  "}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/todos", "{", http.StatusBadRequest},
		{"bad due date", http.MethodPost, "/api/todos", map[string]any{"title": "x", "due_at": "tomorrow"}, http.StatusBadRequest},
		{"bad priority", http.MethodPut, "/api/todos/" + id, map[string]any{"priority": 9}, http.StatusBadRequest},
		{"unknown category", http.MethodPut, "/api/todos/" + id, map[string]any{"category_id": "nope"}, http.StatusBadRequest},
		{"missing status param", http.MethodPatch, "/api/todos/" + id + "/status", nil, http.StatusBadRequest},
		{"get missing", http.MethodGet, "/api/todos/nope", nil, http.StatusNotFound},
		{"update missing", http.MethodPut, "/api/todos/nope", map[string]any{"title": "y"}, http.StatusNotFound},
		{"status missing", http.MethodPatch, "/api/todos/nope/status?status=done", nil, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/todos/nope", nil, http.StatusNotFound},
		{"bad include_deleted", http.MethodGet, "/api/todos?include_deleted=maybe", nil, http.StatusBadRequest},
		{"empty reorder", http.MethodPost, "/api/todos/reorder", []any{}, http.StatusBadRequest},
		{"reorder unknown id", http.MethodPost, "/api/todos/reorder", []map[string]any{{"id": "nope", "sort_order": 1}}, http.StatusNotFound},
		{"sort order too large", http.MethodPost, "/api/todos", map[string]any{"title": "x", "sort_order": 3000000000}, http.StatusBadRequest},
		{"reorder sort order too large", http.MethodPost, "/api/todos/reorder", []map[string]any{{"id": id, "sort_order": 3000000000}}, http.StatusBadRequest},
		{"category sort order too large", http.MethodPost, "/api/categories", map[string]any{"name": "x", "sort_order": -3000000000}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
}

func TestStorageFailureIs500(t *testing.T) {
	api := newTestAPI(t)
	api.store.Err = errors.New("connection refused")

	w := api.do(t, http.MethodGet, "/api/todos", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"connection refused"}`, w.Body.String())
}

func TestReorderBroadcastsOnce(t *testing.T) {
	api := newTestAPI(t)
	var ids []string
	for _, title := range []string{"a", "b"} {
		w := api.do(t, http.MethodPost, "/api/todos", map[string]any{"title": title})
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[dto.TodoResponse](t, w).ID)
	}
	sub := api.hub.Subscribe()
	defer sub.Close()

	w := api.do(t, http.MethodPost, "/api/todos/reorder", []map[string]any{
		{"id": ids[0], "sort_order": 5},
		{"id": ids[1], "sort_order": 4},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	msg := <-sub.C()
	assert.JSONEq(t,
		`{"type":"todos.reordered","data":[{"id":"`+ids[0]+`","sort_order":5},{"id":"`+ids[1]+`","sort_order":4}]}`,
		string(msg))
	select {
	case extra := <-sub.C():
		t.Fatalf("unexpected event %s", extra)
	default:
	}

	w = api.do(t, http.MethodGet, "/api/todos", nil)
	list := decode[[]dto.TodoResponse](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, ids[1], list[0].ID)
}

func TestCategoryInUse(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Work", "color": "#3B82F6"})
	require.Equal(t, http.StatusCreated, w.Code)
	cat := decode[dto.CategoryResponse](t, w)

	w = api.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "report", "category_id": cat.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	todo := decode[dto.TodoResponse](t, w)

	w = api.do(t, http.MethodDelete, "/api/categories/"+cat.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "category in use")

	w = api.do(t, http.MethodDelete, "/api/todos/"+todo.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodDelete, "/api/categories/"+cat.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/categories", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
	w = api.do(t, http.MethodGet, "/api/categories?include_deleted=1", nil)
	assert.Len(t, decode[[]dto.CategoryResponse](t, w), 1)

	w = api.do(t, http.MethodGet, "/api/categories/"+cat.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.CategoryResponse](t, w).Deleted)
}

func TestCategoryUpdate(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Home"})
	require.Equal(t, http.StatusCreated, w.Code)
	cat := decode[dto.CategoryResponse](t, w)

	w = api.do(t, http.MethodPut, "/api/categories/"+cat.ID, map[string]any{"description": "chores", "sort_order": 3})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[dto.CategoryResponse](t, w)
	assert.Equal(t, "Home", got.Name)
	assert.Equal(t, 3, got.SortOrder)
	require.NotNil(t, got.Description)
	assert.Equal(t, "chores", *got.Description)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPut, "/api/categories/nope", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/api/categories", map[string]any{}).Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"db":"ok"}`, w.Body.String())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })).Health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"ok":false,"db":"dial tcp: refused"}`, w.Body.String())
}
