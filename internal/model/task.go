package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
)

// ParseStatus rejects unknown values. Callers that want a default on
// unknown input (the import paths) make that choice at the call site.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryPersonal, CategoryWork:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Category    Category       `json:"category"`
	Project     string         `json:"project,omitempty"` // legacy name reference, superseded by ProjectID
	ProjectID   string         `json:"project_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
}

// Touch advances updated_at; every mutation goes through it.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// AddTag keeps tags unique, insertion order preserved.
func (t *Task) AddTag(tag string) bool {
	if t.HasTag(tag) {
		return false
	}
	t.Tags = append(t.Tags, tag)
	t.Touch()
	return true
}

func (t *Task) RemoveTag(tag string) bool {
	for i, existing := range t.Tags {
		if existing == tag {
			t.Tags = append(t.Tags[:i], t.Tags[i+1:]...)
			t.Touch()
			return true
		}
	}
	return false
}

// Clone deep-copies the mutable fields so a caller can edit the copy
// without touching the stored value.
func (t Task) Clone() Task {
	out := t
	out.Tags = make([]string, len(t.Tags))
	copy(out.Tags, t.Tags)
	out.Metadata = make(map[string]any, len(t.Metadata))
	for k, v := range t.Metadata {
		out.Metadata[k] = v
	}
	return out
}

func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusCompleted
}

type TaskFilter struct {
	Status   *Status
	Priority *Priority
	Category *Category
	Project  *string
	Tag      *string
}

// Matches applies every set field; an empty filter matches everything.
// The project name comparison is case-insensitive.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.Project != nil && !strings.EqualFold(t.Project, *f.Project) {
		return false
	}
	if f.Tag != nil && !t.HasTag(*f.Tag) {
		return false
	}
	return true
}
