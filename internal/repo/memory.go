package repo

import (
	"context"
	"sync"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

// MemoryStore keeps snapshots in memory. Used in tests and as the
// reference implementation of the Store contract.
type MemoryStore struct {
	mu       sync.Mutex
	tasks    []model.Task
	projects []model.Project
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *MemoryStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make([]model.Task, len(tasks))
	copy(s.tasks, tasks)
	return nil
}

func (s *MemoryStore) LoadProjects(ctx context.Context) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Project, len(s.projects))
	copy(out, s.projects)
	return out, nil
}

func (s *MemoryStore) SaveProjects(ctx context.Context, projects []model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make([]model.Project, len(projects))
	copy(s.projects, projects)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
