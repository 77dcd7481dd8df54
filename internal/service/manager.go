package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/repo"
)

// Manager bundles one user's stores and owns the operations that span
// both of them.
type Manager struct {
	Tasks    *TaskStore
	Projects *ProjectStore
	store    repo.Store
	logger   *zap.Logger
}

func NewManager(ctx context.Context, store repo.Store, logger *zap.Logger) (*Manager, error) {
	tasks, err := NewTaskStore(ctx, store, logger)
	if err != nil {
		return nil, err
	}
	projects, err := NewProjectStore(ctx, store, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{Tasks: tasks, Projects: projects, store: store, logger: logger}, nil
}

// Close releases the underlying store (file locks included).
func (m *Manager) Close() error {
	return m.store.Close()
}

// DeleteProject removes a project and unassigns every task that
// referenced it, so no task is left with a dangling project_id. The
// task rewrite happens first; if it fails the project stays.
func (m *Manager) DeleteProject(ctx context.Context, id string) (int, error) {
	if _, err := m.Projects.Get(id); err != nil {
		return 0, err
	}

	cleared, err := m.Tasks.ClearProject(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := m.Projects.Delete(ctx, id); err != nil {
		return cleared, err
	}

	if cleared > 0 {
		m.logger.Info("unassigned tasks from deleted project",
			zap.String("project_id", id),
			zap.Int("tasks", cleared),
		)
	}
	return cleared, nil
}
