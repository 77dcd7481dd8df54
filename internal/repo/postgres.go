package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

// PostgresStore keeps snapshots in shared tasks/projects tables keyed
// by user_id. A save replaces the user's rows in one transaction, which
// matches the full-rewrite semantics of the file backend.
type PostgresStore struct {
	pool   *pgxpool.Pool
	userID string
}

func NewPostgresStore(pool *pgxpool.Pool, userID string) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		userID: userID,
	}
}

func (s *PostgresStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, status, priority, category,
		       project, project_id, created_at, updated_at, due_date, tags, metadata
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at, id
	`, s.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var tags, metadata []byte
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category,
			&t.Project, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt, &t.DueDate, &tags, &metadata); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", t.ID, err)
		}
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM tasks WHERE user_id = $1", s.userID); err != nil {
		return err
	}

	for _, t := range tasks {
		tags, err := json.Marshal(t.Tags)
		if err != nil {
			return err
		}
		metadata, err := json.Marshal(t.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO tasks (user_id, id, title, description, status, priority, category,
			                   project, project_id, created_at, updated_at, due_date, tags, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14::jsonb)
		`, s.userID, t.ID, t.Title, t.Description, t.Status, t.Priority, t.Category,
			t.Project, t.ProjectID, t.CreatedAt, t.UpdatedAt, t.DueDate, tags, metadata)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, description, created_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at, id
	`, s.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) SaveProjects(ctx context.Context, projects []model.Project) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM projects WHERE user_id = $1", s.userID); err != nil {
		return err
	}

	for _, p := range projects {
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (user_id, id, name, category, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.userID, p.ID, p.Name, p.Category, p.Description, p.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Close is a no-op; the pool is shared across users and owned by main.
func (s *PostgresStore) Close() error { return nil }
