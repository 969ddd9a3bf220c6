package domain

import "time"

// Todo statuses. Stored as free text, but only these are accepted on write.
const (
	StatusTodo     = "todo"
	StatusDoing    = "doing"
	StatusDone     = "done"
	StatusArchived = "archived"
)

const (
	MinPriority     = 0
	MaxPriority     = 3
	DefaultPriority = 1
)

// ValidStatus reports whether s is one of the known workflow states.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone, StatusArchived:
		return true
	}
	return false
}

// Domain entity: business object, independent of gin, Postgres and Redis.
// Values handed out by the store are snapshots; mutating them changes nothing persisted.
type Todo struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Note       *string    `json:"note"`
	Status     string     `json:"status"`
	Priority   int        `json:"priority"`
	DueAt      *time.Time `json:"due_at"`
	Tags       *string    `json:"tags"`
	CategoryID *string    `json:"category_id"`
	SortOrder  int        `json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// TodoPatch holds optional overrides; nil fields are left untouched.
type TodoPatch struct {
	Title      *string
	Note       *string
	Status     *string
	Priority   *int
	DueAt      *time.Time
	Tags       *string
	CategoryID *string // "" clears the reference
	SortOrder  *int
	Deleted    *bool
}

// ReorderItem assigns a new manual sort position to one todo.
type ReorderItem struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sort_order"`
}
