package model

import "time"

// Project groups tasks within a category. Names are unique per
// category, so "General" may exist under both work and personal.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectUpdate carries a partial update; nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string
	Category    *Category
	Description *string
}
