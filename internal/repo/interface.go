package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
	ErrorLocked   = errors.New("store locked by another process")
)

// Store persists one user's entities as full snapshots. The stores in
// internal/service own the in-memory state and rewrite the whole
// snapshot on every mutation, so implementations only need Load/Save.
type Store interface {
	LoadTasks(ctx context.Context) ([]model.Task, error)
	SaveTasks(ctx context.Context, tasks []model.Task) error
	LoadProjects(ctx context.Context) ([]model.Project, error)
	SaveProjects(ctx context.Context, projects []model.Project) error
	Close() error
}
