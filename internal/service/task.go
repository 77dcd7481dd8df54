package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/model"
	"github.com/BuzzLyutic/tasksync/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

// TaskStore owns one user's tasks. State lives in memory, every
// mutation rewrites the snapshot through the repo.Store before the
// call returns; a failed save is rolled back so memory and disk never
// silently diverge.
type TaskStore struct {
	store  repo.Store
	logger *zap.Logger
	tasks  map[string]model.Task
}

func NewTaskStore(ctx context.Context, store repo.Store, logger *zap.Logger) (*TaskStore, error) {
	loaded, err := store.LoadTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	tasks := make(map[string]model.Task, len(loaded))
	for _, t := range loaded {
		tasks[t.ID] = t
	}
	return &TaskStore{store: store, logger: logger, tasks: tasks}, nil
}

type CreateTaskParams struct {
	Title       string
	Description string
	Priority    model.Priority
	Category    model.Category
	Project     string
	ProjectID   string
	DueDate     *time.Time
	Tags        []string
}

func (s *TaskStore) Create(ctx context.Context, p CreateTaskParams) (model.Task, error) {
	if strings.TrimSpace(p.Title) == "" {
		return model.Task{}, fmt.Errorf("%w: empty title", ErrValidation)
	}
	if p.Priority == "" {
		p.Priority = model.PriorityMedium
	}
	if p.Category == "" {
		p.Category = model.CategoryPersonal
	}

	now := time.Now().UTC()
	t := model.Task{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		Status:      model.StatusPending,
		Priority:    p.Priority,
		Category:    p.Category,
		Project:     p.Project,
		ProjectID:   p.ProjectID,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     p.DueDate,
		Tags:        []string{},
		Metadata:    map[string]any{},
	}
	for _, tag := range p.Tags {
		if !t.HasTag(tag) {
			t.Tags = append(t.Tags, tag)
		}
	}

	s.tasks[t.ID] = t
	if err := s.persist(ctx); err != nil {
		delete(s.tasks, t.ID)
		return model.Task{}, err
	}
	return t, nil
}

func (s *TaskStore) Get(id string) (model.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, repo.ErrorNotFound
	}
	return t, nil
}

// List returns every task ordered by creation time, id as tiebreak.
func (s *TaskStore) List() []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *TaskStore) ListFiltered(f model.TaskFilter) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range s.List() {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *TaskStore) ListByStatus(status model.Status) []model.Task {
	return s.ListFiltered(model.TaskFilter{Status: &status})
}

func (s *TaskStore) ListByPriority(priority model.Priority) []model.Task {
	return s.ListFiltered(model.TaskFilter{Priority: &priority})
}

func (s *TaskStore) ListByCategory(category model.Category) []model.Task {
	return s.ListFiltered(model.TaskFilter{Category: &category})
}

func (s *TaskStore) ListByTag(tag string) []model.Task {
	return s.ListFiltered(model.TaskFilter{Tag: &tag})
}

func (s *TaskStore) ListByProject(name string) []model.Task {
	return s.ListFiltered(model.TaskFilter{Project: &name})
}

func (s *TaskStore) ListByProjectID(projectID string) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range s.List() {
		if t.ProjectID != "" && t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

// Search matches a case-insensitive substring against title,
// description and tags. No ranking.
func (s *TaskStore) Search(query string) []model.Task {
	query = strings.ToLower(query)
	out := make([]model.Task, 0)
	for _, t := range s.List() {
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Description), query) {
			out = append(out, t)
			continue
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), query) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func (s *TaskStore) Overdue() []model.Task {
	now := time.Now().UTC()
	out := make([]model.Task, 0)
	for _, t := range s.List() {
		if t.Overdue(now) {
			out = append(out, t)
		}
	}
	return out
}

func (s *TaskStore) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		t.Status = status
		return nil
	})
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *model.Priority
	Category    *model.Category
	Project     *string
	ProjectID   *string
	DueDate     *time.Time
	ClearDue    bool
	Tags        *[]string
}

func (s *TaskStore) Update(ctx context.Context, id string, u TaskUpdate) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		if u.Title != nil {
			if strings.TrimSpace(*u.Title) == "" {
				return fmt.Errorf("%w: empty title", ErrValidation)
			}
			t.Title = *u.Title
		}
		if u.Description != nil {
			t.Description = *u.Description
		}
		if u.Priority != nil {
			t.Priority = *u.Priority
		}
		if u.Category != nil {
			t.Category = *u.Category
		}
		if u.Project != nil {
			t.Project = *u.Project
		}
		if u.ProjectID != nil {
			t.ProjectID = *u.ProjectID
		}
		if u.ClearDue {
			t.DueDate = nil
		} else if u.DueDate != nil {
			t.DueDate = u.DueDate
		}
		if u.Tags != nil {
			t.Tags = []string{}
			for _, tag := range *u.Tags {
				if !t.HasTag(tag) {
					t.Tags = append(t.Tags, tag)
				}
			}
		}
		return nil
	})
}

func (s *TaskStore) AddTag(ctx context.Context, id, tag string) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		t.AddTag(tag)
		return nil
	})
}

func (s *TaskStore) RemoveTag(ctx context.Context, id, tag string) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		t.RemoveTag(tag)
		return nil
	})
}

func (s *TaskStore) MergeMetadata(ctx context.Context, id string, values map[string]any) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) error {
		merged := make(map[string]any, len(t.Metadata)+len(values))
		for k, v := range t.Metadata {
			merged[k] = v
		}
		for k, v := range values {
			merged[k] = v
		}
		t.Metadata = merged
		return nil
	})
}

// markSynced is the machinery write used by the sync reconciler: adds
// the marker tag, merges provenance metadata and, when updatedAt is
// set, pins updated_at to the remote timestamp. It deliberately skips
// Touch: a sync run must not make a task look user-edited, otherwise
// every run would see its own writes as newer than the remote copy.
func (s *TaskStore) markSynced(ctx context.Context, id string, values map[string]any, updatedAt *time.Time) (model.Task, error) {
	before, ok := s.tasks[id]
	if !ok {
		return model.Task{}, repo.ErrorNotFound
	}

	t := before.Clone()
	t.AddTag(MarkerTag)
	merged := make(map[string]any, len(t.Metadata)+len(values))
	for k, v := range t.Metadata {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	t.Metadata = merged
	if updatedAt != nil {
		t.UpdatedAt = *updatedAt
	}

	s.tasks[id] = t
	if err := s.persist(ctx); err != nil {
		s.tasks[id] = before
		return model.Task{}, err
	}
	return t, nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	t, ok := s.tasks[id]
	if !ok {
		return repo.ErrorNotFound
	}
	delete(s.tasks, id)
	if err := s.persist(ctx); err != nil {
		s.tasks[id] = t
		return err
	}
	return nil
}

// ClearProject removes both project references from every task bound
// to projectID, in a single snapshot write. Used by the delete cascade.
func (s *TaskStore) ClearProject(ctx context.Context, projectID string) (int, error) {
	before := make(map[string]model.Task)
	count := 0
	for id, t := range s.tasks {
		if t.ProjectID != projectID || projectID == "" {
			continue
		}
		before[id] = t
		t.Project = ""
		t.ProjectID = ""
		t.Touch()
		s.tasks[id] = t
		count++
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.persist(ctx); err != nil {
		for id, t := range before {
			s.tasks[id] = t
		}
		return 0, err
	}
	return count, nil
}

// ProjectNames returns the distinct legacy project names, sorted.
func (s *TaskStore) ProjectNames() []string {
	seen := map[string]struct{}{}
	for _, t := range s.tasks {
		if t.Project != "" {
			seen[t.Project] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Stats struct {
	Total         int                    `json:"total"`
	ByStatus      map[model.Status]int   `json:"by_status"`
	ByPriority    map[model.Priority]int `json:"by_priority"`
	ByCategory    map[model.Category]int `json:"by_category"`
	ByProject     map[string]int         `json:"by_project"`
	Overdue       int                    `json:"overdue"`
	TotalProjects int                    `json:"total_projects"`
}

func (s *TaskStore) Statistics() Stats {
	stats := Stats{
		ByStatus:   map[model.Status]int{},
		ByPriority: map[model.Priority]int{},
		ByCategory: map[model.Category]int{},
		ByProject:  map[string]int{},
	}
	now := time.Now().UTC()
	for _, t := range s.tasks {
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		stats.ByCategory[t.Category]++
		if t.Project != "" {
			stats.ByProject[t.Project]++
		}
		if t.Overdue(now) {
			stats.Overdue++
		}
	}
	stats.TotalProjects = len(s.ProjectNames())
	return stats
}

func (s *TaskStore) mutate(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	before, ok := s.tasks[id]
	if !ok {
		return model.Task{}, repo.ErrorNotFound
	}

	t := before.Clone()
	if err := fn(&t); err != nil {
		return model.Task{}, err
	}
	t.Touch()

	s.tasks[id] = t
	if err := s.persist(ctx); err != nil {
		s.tasks[id] = before
		return model.Task{}, err
	}
	return t, nil
}

func (s *TaskStore) persist(ctx context.Context) error {
	if err := s.store.SaveTasks(ctx, s.List()); err != nil {
		return fmt.Errorf("persist tasks: %w", err)
	}
	return nil
}
