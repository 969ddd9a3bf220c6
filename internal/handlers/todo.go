package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dom "github.com/friden-zhang/raspi-todo/internal/domain"
	"github.com/friden-zhang/raspi-todo/internal/dto"
	"github.com/friden-zhang/raspi-todo/internal/repo"
	"github.com/friden-zhang/raspi-todo/internal/service"
)

type TodoHandler struct {
	svc *service.TodoService
}

func NewTodoHandler(svc *service.TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// Create godoc
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTodoRequest  true  "Todo body"
// @Success      201   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	t, err := h.svc.Create(c.Request.Context(), service.CreateTodoInput{
		Title:      req.Title,
		Note:       req.Note,
		Status:     req.Status,
		Priority:   req.Priority,
		DueAt:      req.DueAt.Ptr(),
		Tags:       req.Tags,
		CategoryID: req.CategoryID,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, todoToResponse(t))
}

// List godoc
// @Summary      List todos
// @Description  Ordered by priority desc, due date asc (missing last), sort order, creation time.
// @Tags         todos
// @Produce      json
// @Param        status           query     string  false  "Filter by status"
// @Param        include_deleted  query     bool    false  "Include soft-deleted todos"
// @Success      200  {array}   dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	includeDeleted, ok := queryBool(c, "include_deleted")
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), repo.TodoFilter{
		Status:         c.Query("status"),
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todosToResponses(list))
}

// GetByID godoc
// @Summary      Get a todo by ID
// @Tags         todos
// @Produce      json
// @Param        id   path      string  true  "Todo ID"
// @Success      200  {object}  dto.TodoResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [get]
func (h *TodoHandler) GetByID(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todoToResponse(t))
}

// Update godoc
// @Summary      Update a todo
// @Description  Partial update: only fields present in the body change.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "Todo ID"
// @Param        body  body      dto.UpdateTodoRequest  true  "Partial update"
// @Success      200   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	var req dto.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.Update(c.Request.Context(), c.Param("id"), dom.TodoPatch{
		Title:      req.Title,
		Note:       req.Note,
		Status:     req.Status,
		Priority:   req.Priority,
		DueAt:      dto.DueAtPtr(req.DueAt),
		Tags:       req.Tags,
		CategoryID: req.CategoryID,
		SortOrder:  req.SortOrder,
		Deleted:    req.Deleted,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todoToResponse(t))
}

// UpdateStatus godoc
// @Summary      Change only the status of a todo
// @Tags         todos
// @Produce      json
// @Param        id      path      string  true  "Todo ID"
// @Param        status  query     string  true  "New status"
// @Success      200     {object}  dto.TodoResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Failure      500     {object}  dto.ErrorResponse
// @Router       /todos/{id}/status [patch]
func (h *TodoHandler) UpdateStatus(c *gin.Context) {
	t, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, todoToResponse(t))
}

// Delete godoc
// @Summary      Soft-delete a todo
// @Tags         todos
// @Produce      json
// @Param        id   path      string  true  "Todo ID"
// @Success      200  {object}  dto.OKResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKResponse{OK: true})
}

// Reorder godoc
// @Summary      Set manual sort order for several todos at once
// @Description  All items apply or none do.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        body  body      []dto.ReorderItem  true  "New sort orders"
// @Success      200   {object}  dto.OKResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos/reorder [post]
func (h *TodoHandler) Reorder(c *gin.Context) {
	var req []dto.ReorderItem
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	items := make([]dom.ReorderItem, len(req))
	for i, it := range req {
		items[i] = dom.ReorderItem{ID: it.ID, SortOrder: it.SortOrder}
	}
	if err := h.svc.Reorder(c.Request.Context(), items); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKResponse{OK: true})
}

func todoToResponse(t dom.Todo) dto.TodoResponse {
	return dto.TodoResponse{
		ID:         t.ID,
		Title:      t.Title,
		Note:       t.Note,
		Status:     t.Status,
		Priority:   t.Priority,
		DueAt:      t.DueAt,
		Tags:       t.Tags,
		CategoryID: t.CategoryID,
		SortOrder:  t.SortOrder,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		Deleted:    t.Deleted,
	}
}

func todosToResponses(list []dom.Todo) []dto.TodoResponse {
	out := make([]dto.TodoResponse, len(list))
	for i := range list {
		out[i] = todoToResponse(list[i])
	}
	return out
}
