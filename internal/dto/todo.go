package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DueAt parses due_at from JSON as either date-only ("2006-01-02") or RFC3339.
// Date-only is stored as start of that day in UTC.
type DueAt struct{ t *time.Time }

func (d *DueAt) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.t = nil
		return nil
	}
	s := strings.TrimSpace(*raw)
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			parsed = parsed.UTC()
			d.t = &parsed
			return nil
		}
	}
	return fmt.Errorf("due_at: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// Ptr returns *time.Time for use in service/domain.
func (d DueAt) Ptr() *time.Time { return d.t }

// DueAtPtr unwraps an optional DueAt; nil stays nil.
func DueAtPtr(d *DueAt) *time.Time {
	if d == nil {
		return nil
	}
	return d.t
}

type CreateTodoRequest struct {
	Title      string  `json:"title" binding:"required,max=500"`
	Note       *string `json:"note"`
	Status     *string `json:"status"`
	Priority   *int    `json:"priority"`
	DueAt      DueAt   `json:"due_at"` // optional: "2026-02-19" or RFC3339
	Tags       *string `json:"tags"`
	CategoryID *string `json:"category_id"`
	SortOrder  *int    `json:"sort_order"`
}

// UpdateTodoRequest is a partial update: nil = leave unchanged.
type UpdateTodoRequest struct {
	Title      *string `json:"title" binding:"omitempty,max=500"`
	Note       *string `json:"note"`
	Status     *string `json:"status"`
	Priority   *int    `json:"priority"`
	DueAt      *DueAt  `json:"due_at"`
	Tags       *string `json:"tags"`
	CategoryID *string `json:"category_id"` // "" detaches the category
	SortOrder  *int    `json:"sort_order"`
	Deleted    *bool   `json:"deleted"`
}

type ReorderItem struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sort_order"`
}

type TodoResponse struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Note       *string    `json:"note"`
	Status     string     `json:"status"`
	Priority   int        `json:"priority"`
	DueAt      *time.Time `json:"due_at"`
	Tags       *string    `json:"tags"`
	CategoryID *string    `json:"category_id"`
	SortOrder  int        `json:"sort_order"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Deleted    bool       `json:"deleted"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type HealthResponse struct {
	OK bool   `json:"ok"`
	DB string `json:"db"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
