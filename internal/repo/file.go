package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

// FileStore writes one user's entities to tasks_<user>.json and
// projects_<user>.json under dir. Every save rewrites the whole file
// through a temp file + rename so a crash never leaves a torn file.
// An advisory flock on <user>.lock is held for the store's lifetime to
// keep a second process off the same user's files.
type FileStore struct {
	dir    string
	userID string
	lock   *os.File
}

func NewFileStore(dir, userID string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock, err := os.OpenFile(filepath.Join(dir, userID+".lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(lock.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lock.Close()
		return nil, fmt.Errorf("%w: %s", ErrorLocked, userID)
	}

	return &FileStore{dir: dir, userID: userID, lock: lock}, nil
}

func (s *FileStore) taskFile() string {
	return filepath.Join(s.dir, "tasks_"+s.userID+".json")
}

func (s *FileStore) projectFile() string {
	return filepath.Join(s.dir, "projects_"+s.userID+".json")
}

func (s *FileStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := s.load(s.taskFile(), &tasks); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tasks, nil
}

func (s *FileStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	if err := s.save(s.taskFile(), tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (s *FileStore) LoadProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := s.load(s.projectFile(), &projects); err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	return projects, nil
}

func (s *FileStore) SaveProjects(ctx context.Context, projects []model.Project) error {
	if projects == nil {
		projects = []model.Project{}
	}
	if err := s.save(s.projectFile(), projects); err != nil {
		return fmt.Errorf("save projects: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	syscall.Flock(int(s.lock.Fd()), syscall.LOCK_UN)
	return s.lock.Close()
}

// load leaves v untouched when the file does not exist yet.
func (s *FileStore) load(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *FileStore) save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
