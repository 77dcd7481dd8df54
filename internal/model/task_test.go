package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRoundTrip(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	original := Task{
		ID:          "t-1",
		Title:       "Write report",
		Description: "quarterly numbers",
		Status:      StatusInProgress,
		Priority:    PriorityHigh,
		Category:    CategoryWork,
		Project:     "Reports",
		ProjectID:   "p-1",
		CreatedAt:   time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC),
		DueDate:     &due,
		Tags:        []string{"report", "urgent"},
		Metadata:    map[string]any{"remote_id": "g1"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Task
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Title, decoded.Title)
	assert.Equal(t, original.Description, decoded.Description)
	assert.Equal(t, original.Status, decoded.Status)
	assert.Equal(t, original.Priority, decoded.Priority)
	assert.Equal(t, original.Category, decoded.Category)
	assert.Equal(t, original.Project, decoded.Project)
	assert.Equal(t, original.ProjectID, decoded.ProjectID)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))
	require.NotNil(t, decoded.DueDate)
	assert.True(t, due.Equal(*decoded.DueDate))
	assert.Equal(t, original.Tags, decoded.Tags)
	assert.Equal(t, original.Metadata, decoded.Metadata)
}

func TestProjectRoundTrip(t *testing.T) {
	original := Project{
		ID:          "p-1",
		Name:        "General",
		Category:    CategoryWork,
		Description: "General work tasks",
		CreatedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Project
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.Category, decoded.Category)
	assert.Equal(t, original.Description, decoded.Description)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
}

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(string) (any, error)
		input   string
		wantErr bool
	}{
		{"valid status", func(s string) (any, error) { return ParseStatus(s) }, "in_progress", false},
		{"unknown status", func(s string) (any, error) { return ParseStatus(s) }, "done", true},
		{"valid priority", func(s string) (any, error) { return ParsePriority(s) }, "urgent", false},
		{"unknown priority", func(s string) (any, error) { return ParsePriority(s) }, "critical", true},
		{"valid category", func(s string) (any, error) { return ParseCategory(s) }, "work", false},
		{"unknown category", func(s string) (any, error) { return ParseCategory(s) }, "school", true},
		{"empty status", func(s string) (any, error) { return ParseStatus(s) }, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskTags(t *testing.T) {
	task := Task{Tags: []string{}}

	assert.True(t, task.AddTag("home"))
	assert.False(t, task.AddTag("home")) // duplicates rejected
	assert.True(t, task.AddTag("Home"))  // tags are case-sensitive
	assert.Equal(t, []string{"home", "Home"}, task.Tags)

	assert.True(t, task.RemoveTag("home"))
	assert.False(t, task.RemoveTag("home"))
	assert.Equal(t, []string{"Home"}, task.Tags)
}

func TestTaskOverdue(t *testing.T) {
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"past due pending", Task{Status: StatusPending, DueDate: &yesterday}, true},
		{"past due completed", Task{Status: StatusCompleted, DueDate: &yesterday}, false},
		{"future due", Task{Status: StatusPending, DueDate: &tomorrow}, false},
		{"no due date", Task{Status: StatusPending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Overdue(now))
		})
	}
}

func TestTaskClone(t *testing.T) {
	task := Task{
		Tags:     []string{"a"},
		Metadata: map[string]any{"k": "v"},
	}

	clone := task.Clone()
	clone.AddTag("b")
	clone.Metadata["k2"] = "v2"

	assert.Equal(t, []string{"a"}, task.Tags)
	assert.NotContains(t, task.Metadata, "k2")
}

func TestTaskFilterProjectCaseInsensitive(t *testing.T) {
	name := "reports"
	filter := TaskFilter{Project: &name}

	assert.True(t, filter.Matches(Task{Project: "Reports"}))
	assert.False(t, filter.Matches(Task{Project: "Other"}))
}
