package domain

import "time"

// Category groups todos. It cannot be soft-deleted while active todos reference it.
type Category struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
	SortOrder   int     `json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

type CategoryPatch struct {
	Name        *string
	Color       *string
	Description *string
	SortOrder   *int
	Deleted     *bool
}
