package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/model"
	"github.com/BuzzLyutic/tasksync/internal/repo"
)

// ProjectStore owns one user's projects. Name uniqueness is scoped to
// the category, so work/General and personal/General can coexist.
// Deleting a project here does NOT touch tasks; the cascade belongs to
// Manager.DeleteProject.
type ProjectStore struct {
	store    repo.Store
	logger   *zap.Logger
	projects map[string]model.Project
}

type defaultProject struct {
	name        string
	category    model.Category
	description string
}

var defaultProjects = []defaultProject{
	{"General", model.CategoryWork, "General work tasks"},
	{"Development", model.CategoryWork, "Software development projects"},
	{"Meetings", model.CategoryWork, "Meeting-related tasks"},
	{"Administration", model.CategoryWork, "Administrative tasks"},
	{"Home", model.CategoryPersonal, "Home and household tasks"},
	{"Health", model.CategoryPersonal, "Health and fitness related tasks"},
	{"Learning", model.CategoryPersonal, "Personal learning and education"},
	{"Hobbies", model.CategoryPersonal, "Hobby and recreational activities"},
}

func NewProjectStore(ctx context.Context, store repo.Store, logger *zap.Logger) (*ProjectStore, error) {
	loaded, err := store.LoadProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}

	s := &ProjectStore{
		store:    store,
		logger:   logger,
		projects: make(map[string]model.Project, len(loaded)),
	}
	for _, p := range loaded {
		s.projects[p.ID] = p
	}

	// First use: seed the fixed defaults so the hierarchy is never empty.
	if len(s.projects) == 0 {
		if err := s.seedDefaults(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ProjectStore) seedDefaults(ctx context.Context) error {
	now := time.Now().UTC()
	for _, d := range defaultProjects {
		p := model.Project{
			ID:          uuid.NewString(),
			Name:        d.name,
			Category:    d.category,
			Description: d.description,
			CreatedAt:   now,
		}
		s.projects[p.ID] = p
	}
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.logger.Info("seeded default projects", zap.Int("count", len(defaultProjects)))
	return nil
}

func (s *ProjectStore) Create(ctx context.Context, name string, category model.Category, description string) (model.Project, error) {
	if strings.TrimSpace(name) == "" {
		return model.Project{}, fmt.Errorf("%w: empty project name", ErrValidation)
	}
	if category == "" {
		category = model.CategoryPersonal
	}
	if _, err := s.GetByName(name, &category); err == nil {
		return model.Project{}, fmt.Errorf("%w: project %q already exists in %s", repo.ErrorConflict, name, category)
	}

	p := model.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Category:    category,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	s.projects[p.ID] = p
	if err := s.persist(ctx); err != nil {
		delete(s.projects, p.ID)
		return model.Project{}, err
	}
	return p, nil
}

func (s *ProjectStore) Get(id string) (model.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, repo.ErrorNotFound
	}
	return p, nil
}

// GetByName looks a project up by exact name, optionally scoped to a
// category. With a nil category the first match in creation order wins.
func (s *ProjectStore) GetByName(name string, category *model.Category) (model.Project, error) {
	for _, p := range s.ListAll() {
		if p.Name == name && (category == nil || p.Category == *category) {
			return p, nil
		}
	}
	return model.Project{}, repo.ErrorNotFound
}

func (s *ProjectStore) ListByCategory(category model.Category) []model.Project {
	out := make([]model.Project, 0)
	for _, p := range s.ListAll() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (s *ProjectStore) ListAll() []model.Project {
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *ProjectStore) Update(ctx context.Context, id string, u model.ProjectUpdate) (model.Project, error) {
	before, ok := s.projects[id]
	if !ok {
		return model.Project{}, repo.ErrorNotFound
	}

	p := before
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return model.Project{}, fmt.Errorf("%w: empty project name", ErrValidation)
		}
		p.Name = *u.Name
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Description != nil {
		p.Description = *u.Description
	}

	// Renames and category moves must not collide with another project.
	if existing, err := s.GetByName(p.Name, &p.Category); err == nil && existing.ID != id {
		return model.Project{}, fmt.Errorf("%w: project %q already exists in %s", repo.ErrorConflict, p.Name, p.Category)
	}

	s.projects[id] = p
	if err := s.persist(ctx); err != nil {
		s.projects[id] = before
		return model.Project{}, err
	}
	return p, nil
}

func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	p, ok := s.projects[id]
	if !ok {
		return repo.ErrorNotFound
	}
	delete(s.projects, id)
	if err := s.persist(ctx); err != nil {
		s.projects[id] = p
		return err
	}
	return nil
}

func (s *ProjectStore) persist(ctx context.Context) error {
	if err := s.store.SaveProjects(ctx, s.ListAll()); err != nil {
		return fmt.Errorf("persist projects: %w", err)
	}
	return nil
}
