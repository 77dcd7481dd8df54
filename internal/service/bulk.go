package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

// Bulk interchange: the one-shot batch format produced by the export
// tooling of other task systems. Distinct from the live provider
// contract in sync.go.

type ExportInfo struct {
	Source     string `json:"source"`
	ExportDate string `json:"export_date"`
	TotalTasks int    `json:"total_tasks"`
	TotalLists int    `json:"total_lists"`
}

type BulkTask struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	Category    string         `json:"category,omitempty"`
	Project     string         `json:"project,omitempty"`
	DueDate     string         `json:"due_date,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type BulkDocument struct {
	ExportInfo ExportInfo `json:"export_info"`
	Tasks      []BulkTask `json:"tasks"`
}

type BulkResult struct {
	Imported        int      `json:"imported"`
	Skipped         int      `json:"skipped"`
	ProjectsCreated int      `json:"projects_created"`
	Errors          []string `json:"errors,omitempty"`
}

const bulkSource = "google_tasks_import"

// BulkImport loads a whole interchange document. Tasks are matched
// against existing ones by id, then by normalized title among earlier
// bulk imports; projects are created on demand per (name, category).
// Unknown enum strings fall back to their defaults here: this is the
// tolerant boundary, the parsers themselves stay strict.
func (m *Manager) BulkImport(ctx context.Context, doc BulkDocument) (BulkResult, error) {
	result := BulkResult{}
	projectIDs := map[string]string{} // name:category -> project id

	for _, entry := range doc.Tasks {
		if m.bulkTaskExists(entry) {
			result.Skipped++
			continue
		}

		category := model.CategoryPersonal
		if parsed, err := model.ParseCategory(entry.Category); err == nil {
			category = parsed
		}
		priority := model.PriorityMedium
		if parsed, err := model.ParsePriority(entry.Priority); err == nil {
			priority = parsed
		}
		status := model.StatusPending
		if parsed, err := model.ParseStatus(entry.Status); err == nil {
			status = parsed
		}

		projectName := entry.Project
		if projectName == "" {
			projectName = "Imported Tasks"
		}
		projectID, err := m.bulkProject(ctx, projectIDs, projectName, category, &result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("project %s: %v", projectName, err))
			continue
		}

		var due *time.Time
		if entry.DueDate != "" {
			if parsed, err := parseRemoteTime(entry.DueDate); err == nil {
				due = &parsed
			}
		}

		metadata := map[string]any{"source": bulkSource}
		for k, v := range entry.Metadata {
			metadata[k] = v
		}

		t, err := m.Tasks.Create(ctx, CreateTaskParams{
			Title:       entry.Title,
			Description: entry.Description,
			Priority:    priority,
			Category:    category,
			ProjectID:   projectID,
			DueDate:     due,
			Tags:        entry.Tags,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", entry.Title, err))
			continue
		}
		if _, err := m.Tasks.MergeMetadata(ctx, t.ID, metadata); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", entry.Title, err))
			continue
		}
		if status != model.StatusPending {
			if _, err := m.Tasks.UpdateStatus(ctx, t.ID, status); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", entry.Title, err))
				continue
			}
		}
		result.Imported++
	}

	m.logger.Info("bulk import finished",
		zap.String("source", doc.ExportInfo.Source),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("projects_created", result.ProjectsCreated),
	)
	return result, nil
}

func (m *Manager) bulkTaskExists(entry BulkTask) bool {
	if entry.ID != "" {
		if _, err := m.Tasks.Get(entry.ID); err == nil {
			return true
		}
	}
	title := normalizeTitle(entry.Title)
	for _, t := range m.Tasks.List() {
		source, _ := t.Metadata["source"].(string)
		if strings.Contains(source, "google_tasks") && normalizeTitle(t.Title) == title {
			return true
		}
	}
	return false
}

func (m *Manager) bulkProject(ctx context.Context, cache map[string]string, name string, category model.Category, result *BulkResult) (string, error) {
	key := name + ":" + string(category)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	if existing, err := m.Projects.GetByName(name, &category); err == nil {
		cache[key] = existing.ID
		return existing.ID, nil
	}

	created, err := m.Projects.Create(ctx, name, category, "Imported from Google Tasks")
	if err != nil {
		return "", err
	}
	result.ProjectsCreated++
	cache[key] = created.ID
	return created.ID, nil
}

// BulkExport builds the interchange document from the current store.
func (m *Manager) BulkExport() BulkDocument {
	tasks := m.Tasks.List()
	entries := make([]BulkTask, 0, len(tasks))
	for _, t := range tasks {
		entry := BulkTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      string(t.Status),
			Priority:    string(t.Priority),
			Category:    string(t.Category),
			Project:     t.Project,
			Tags:        t.Tags,
			Metadata:    t.Metadata,
		}
		if entry.Project == "" && t.ProjectID != "" {
			if p, err := m.Projects.Get(t.ProjectID); err == nil {
				entry.Project = p.Name
			}
		}
		if t.DueDate != nil {
			entry.DueDate = t.DueDate.Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}

	return BulkDocument{
		ExportInfo: ExportInfo{
			Source:     "tasksync",
			ExportDate: time.Now().UTC().Format(time.RFC3339),
			TotalTasks: len(entries),
			TotalLists: len(m.Projects.ListAll()),
		},
		Tasks: entries,
	}
}
