package service

import (
	"github.com/BuzzLyutic/tasksync/internal/model"
)

// ProjectRef is the bucket header of the hierarchy. ID is nil for
// synthesized buckets (General placeholders and legacy-name projects
// that exist only as a task's project string).
type ProjectRef struct {
	ID          *string        `json:"id"`
	Name        string         `json:"name"`
	Category    model.Category `json:"category"`
	Description string         `json:"description,omitempty"`
}

type Bucket struct {
	Project ProjectRef   `json:"project"`
	Tasks   []model.Task `json:"tasks"`
}

// Hierarchy is the category -> project name -> bucket view. Every
// known project appears even with zero tasks, and every task lands in
// exactly one bucket.
type Hierarchy map[model.Category]map[string]*Bucket

const generalName = "General"

// Hierarchy derives the display structure. Resolution order per task:
// resolvable project_id wins (the project's own category decides
// placement), a dangling project_id falls back to the task category's
// General, then the legacy project name, then General.
func (m *Manager) Hierarchy() Hierarchy {
	h := Hierarchy{
		model.CategoryWork:     {},
		model.CategoryPersonal: {},
	}

	for _, p := range m.Projects.ListAll() {
		id := p.ID
		h[p.Category][p.Name] = &Bucket{
			Project: ProjectRef{
				ID:          &id,
				Name:        p.Name,
				Category:    p.Category,
				Description: p.Description,
			},
			Tasks: []model.Task{},
		}
	}

	// General exists in both categories; only synthesized when no real
	// project already claims the name there.
	for _, category := range []model.Category{model.CategoryWork, model.CategoryPersonal} {
		if _, ok := h[category][generalName]; !ok {
			h[category][generalName] = &Bucket{
				Project: ProjectRef{Name: generalName, Category: category, Description: "General tasks"},
				Tasks:   []model.Task{},
			}
		}
	}

	for _, t := range m.Tasks.List() {
		bucket := m.resolveBucket(h, t)
		bucket.Tasks = append(bucket.Tasks, t)
	}
	return h
}

func (m *Manager) resolveBucket(h Hierarchy, t model.Task) *Bucket {
	if t.ProjectID != "" {
		if p, err := m.Projects.Get(t.ProjectID); err == nil {
			return h[p.Category][p.Name]
		}
		// Dangling reference: the task keeps its own category.
		return h[t.Category][generalName]
	}

	if t.Project != "" {
		if bucket, ok := h[t.Category][t.Project]; ok {
			return bucket
		}
		bucket := &Bucket{
			Project: ProjectRef{Name: t.Project, Category: t.Category, Description: "Legacy project"},
			Tasks:   []model.Task{},
		}
		h[t.Category][t.Project] = bucket
		return bucket
	}

	return h[t.Category][generalName]
}
