package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

// MockProvider - мок внешнего провайдера
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ListCollections(ctx context.Context) ([]Collection, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Collection), args.Error(1)
}

func (m *MockProvider) ListItems(ctx context.Context, collectionID string) ([]Item, error) {
	args := m.Called(ctx, collectionID)
	return args.Get(0).([]Item), args.Error(1)
}

func (m *MockProvider) CreateItem(ctx context.Context, collectionID string, item Item) (Item, error) {
	args := m.Called(ctx, collectionID, item)
	return args.Get(0).(Item), args.Error(1)
}

func (m *MockProvider) UpdateItem(ctx context.Context, collectionID, itemID string, item Item) (Item, error) {
	args := m.Called(ctx, collectionID, itemID, item)
	return args.Get(0).(Item), args.Error(1)
}

func (m *MockProvider) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	args := m.Called(ctx, collectionID, itemID)
	return args.Error(0)
}

func TestReconciler_Import(t *testing.T) {
	tasks := newTestTaskStore(t)
	provider := new(MockProvider)

	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{
		{ID: "g1", Title: "Buy milk", Status: ItemStatusNeedsAction, Updated: time.Now().UTC().Format(time.RFC3339)},
		{ID: "g2", Title: "Ship release", Status: ItemStatusCompleted, Due: "2026-09-15T00:00:00Z"},
		{ID: "g3", Title: "Bad due", Due: "not-a-date"},
	}, nil)
	provider.On("UpdateItem", mock.Anything, "list-1", mock.Anything, mock.Anything).
		Return(Item{Updated: time.Now().UTC().Add(time.Minute).Format(time.RFC3339)}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	result, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.Exported)

	// g1: pending with remote provenance.
	var milk model.Task
	for _, task := range tasks.List() {
		if task.Metadata[MetaRemoteID] == "g1" {
			milk = task
		}
	}
	require.NotEmpty(t, milk.ID)
	assert.Equal(t, model.StatusPending, milk.Status)
	assert.Equal(t, "list-1", milk.Metadata[MetaRemoteListID])
	assert.True(t, milk.HasTag(MarkerTag))

	// g2: completed status carried over, due date parsed.
	var release model.Task
	for _, task := range tasks.List() {
		if task.Metadata[MetaRemoteID] == "g2" {
			release = task
		}
	}
	assert.Equal(t, model.StatusCompleted, release.Status)
	require.NotNil(t, release.DueDate)

	// g3: malformed due dropped, item still imported.
	var bad model.Task
	for _, task := range tasks.List() {
		if task.Metadata[MetaRemoteID] == "g3" {
			bad = task
		}
	}
	require.NotEmpty(t, bad.ID)
	assert.Nil(t, bad.DueDate)
}

func TestReconciler_ImportIdempotent(t *testing.T) {
	tasks := newTestTaskStore(t)
	provider := new(MockProvider)

	items := []Item{{ID: "g1", Title: "Buy milk", Status: ItemStatusNeedsAction}}
	provider.On("ListItems", mock.Anything, "list-1").Return(items, nil)
	provider.On("UpdateItem", mock.Anything, "list-1", "g1", mock.Anything).
		Return(Item{Updated: time.Now().UTC().Add(time.Hour).Format(time.RFC3339)}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)

	first, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	second, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Zero(t, second.Imported, "re-import of unchanged remote must create nothing")
	assert.Zero(t, second.Updated, "the first run's push settled the record")
	assert.Len(t, tasks.List(), 1)
}

func TestReconciler_ImportTitleFallback(t *testing.T) {
	tasks := newTestTaskStore(t)
	ctx := context.Background()

	// A synced task whose remote id was lost still blocks re-import of
	// the same title. An unsynced task with the same title does not.
	_, err := tasks.Create(ctx, CreateTaskParams{Title: "Buy Milk ", Tags: []string{MarkerTag}})
	require.NoError(t, err)

	provider := new(MockProvider)
	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{
		{ID: "g9", Title: "buy milk"},
	}, nil)
	provider.On("UpdateItem", mock.Anything, "list-1", mock.Anything, mock.Anything).
		Return(Item{}, nil).Maybe()

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	result, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)

	assert.Zero(t, result.Imported)
	assert.Len(t, tasks.List(), 1)
}

func TestReconciler_Export(t *testing.T) {
	tasks := newTestTaskStore(t)
	ctx := context.Background()

	local, err := tasks.Create(ctx, CreateTaskParams{Title: "Local only", Description: "notes"})
	require.NoError(t, err)

	createdStamp := time.Now().UTC().Add(time.Minute).Format(time.RFC3339)
	provider := new(MockProvider)
	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{}, nil)
	provider.On("CreateItem", mock.Anything, "list-1", mock.MatchedBy(func(item Item) bool {
		return item.Title == "Local only" && item.Status == ItemStatusNeedsAction
	})).Return(Item{ID: "new-1", Updated: createdStamp}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	result, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Exported)
	assert.Zero(t, result.Updated)

	got, err := tasks.Get(local.ID)
	require.NoError(t, err)
	assert.True(t, got.HasTag(MarkerTag))
	assert.Equal(t, "new-1", got.Metadata[MetaRemoteID])
	assert.Equal(t, "list-1", got.Metadata[MetaRemoteListID])
	// После экспорта локальная копия выровнена по метке удаленной
	// стороны, а не помечена как свежая правка.
	pinned, err := parseRemoteTime(createdStamp)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(pinned))

	provider.AssertExpectations(t)
}

// Timestamps from a real provider are "server now", never in the
// future. Both directions must still settle: a second run may not push
// anything. UpdateItem is deliberately not registered on the mock, so
// any re-push fails the test.
func TestReconciler_Converges(t *testing.T) {
	tasks := newTestTaskStore(t)
	ctx := context.Background()

	_, err := tasks.Create(ctx, CreateTaskParams{Title: "Local only"})
	require.NoError(t, err)

	remoteStamp := time.Now().UTC().Format(time.RFC3339)
	provider := new(MockProvider)
	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{
		{ID: "g1", Title: "Buy milk", Status: ItemStatusNeedsAction, Updated: remoteStamp},
	}, nil)
	provider.On("CreateItem", mock.Anything, "list-1", mock.Anything).
		Return(Item{ID: "new-1", Updated: time.Now().UTC().Format(time.RFC3339)}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)

	first, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)
	assert.Equal(t, 1, first.Exported)
	assert.Zero(t, first.Updated, "a run must not push its own writes")

	second, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Zero(t, second.Imported)
	assert.Zero(t, second.Exported)
	assert.Zero(t, second.Updated)

	// Импортированная задача закреплена на метке удаленной стороны.
	for _, task := range tasks.List() {
		if task.Metadata[MetaRemoteID] == "g1" {
			pinned, perr := parseRemoteTime(remoteStamp)
			require.NoError(t, perr)
			assert.True(t, task.UpdatedAt.Equal(pinned))
		}
	}
}

// A real local edit after a sync still goes out, exactly once.
func TestReconciler_EditAfterSyncPushesOnce(t *testing.T) {
	tasks := newTestTaskStore(t)
	ctx := context.Background()

	remoteStamp := time.Now().UTC().Format(time.RFC3339)
	provider := new(MockProvider)
	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{
		{ID: "g1", Title: "Buy milk", Updated: remoteStamp},
	}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	_, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)

	var milkID string
	for _, task := range tasks.List() {
		if task.Metadata[MetaRemoteID] == "g1" {
			milkID = task.ID
		}
	}
	require.NotEmpty(t, milkID)

	newTitle := "Buy oat milk"
	_, err = tasks.Update(ctx, milkID, TaskUpdate{Title: &newTitle})
	require.NoError(t, err)

	pushStamp := time.Now().UTC().Add(time.Second).Format(time.RFC3339)
	provider.On("UpdateItem", mock.Anything, "list-1", "g1", mock.MatchedBy(func(item Item) bool {
		return item.Title == "Buy oat milk"
	})).Return(Item{ID: "g1", Updated: pushStamp}, nil).Once()

	pushed, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pushed.Updated)

	settled, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Zero(t, settled.Updated)
	provider.AssertExpectations(t)
}

func TestReconciler_UpdateStaleness(t *testing.T) {
	tests := []struct {
		name          string
		remoteUpdated string
		wantPush      bool
	}{
		{"missing remote timestamp", "", true},
		{"unparseable remote timestamp", "garbage", true},
		{"remote newer than local", time.Now().UTC().Add(time.Hour).Format(time.RFC3339), false},
		{"local newer than remote", time.Now().UTC().Add(-time.Hour).Format(time.RFC3339), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := newTestTaskStore(t)
			ctx := context.Background()

			task, err := tasks.Create(ctx, CreateTaskParams{Title: "Synced", Tags: []string{MarkerTag}})
			require.NoError(t, err)
			meta := map[string]any{MetaRemoteID: "g1"}
			if tt.remoteUpdated != "" {
				meta[MetaRemoteUpdated] = tt.remoteUpdated
			}
			_, err = tasks.MergeMetadata(ctx, task.ID, meta)
			require.NoError(t, err)

			provider := new(MockProvider)
			provider.On("ListItems", mock.Anything, "list-1").Return([]Item{}, nil)
			if tt.wantPush {
				provider.On("UpdateItem", mock.Anything, "list-1", "g1", mock.Anything).
					Return(Item{Updated: time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)}, nil)
			}

			r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
			result, err := r.Run(context.Background(), "list-1")
			require.NoError(t, err)

			if tt.wantPush {
				assert.Equal(t, 1, result.Updated)
			} else {
				assert.Zero(t, result.Updated)
			}
			provider.AssertExpectations(t)
		})
	}
}

func TestReconciler_PerItemErrors(t *testing.T) {
	tasks := newTestTaskStore(t)
	ctx := context.Background()

	_, err := tasks.Create(ctx, CreateTaskParams{Title: "first"})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, CreateTaskParams{Title: "second"})
	require.NoError(t, err)

	provider := new(MockProvider)
	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{}, nil)
	provider.On("CreateItem", mock.Anything, "list-1", mock.MatchedBy(func(item Item) bool {
		return item.Title == "first"
	})).Return(Item{}, errors.New("rejected write"))
	provider.On("CreateItem", mock.Anything, "list-1", mock.MatchedBy(func(item Item) bool {
		return item.Title == "second"
	})).Return(Item{ID: "ok-1", Updated: time.Now().UTC().Add(time.Minute).Format(time.RFC3339)}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	result, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)

	// One failure does not abort the batch, and it is reported.
	assert.Equal(t, 1, result.Exported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "export", result.Errors[0].Phase)
	assert.Contains(t, result.Errors[0].Err, "rejected write")
	assert.Equal(t, "first", result.Errors[0].Title)
}

func TestReconciler_DefaultCollection(t *testing.T) {
	tasks := newTestTaskStore(t)
	provider := new(MockProvider)

	provider.On("ListCollections", mock.Anything).Return([]Collection{
		{ID: "primary", Title: "My Tasks"},
		{ID: "secondary", Title: "Other"},
	}, nil)
	provider.On("ListItems", mock.Anything, "primary").Return([]Item{}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	_, err := r.Run(context.Background(), "")
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestReconciler_NoCollections(t *testing.T) {
	tasks := newTestTaskStore(t)
	provider := new(MockProvider)
	provider.On("ListCollections", mock.Anything).Return([]Collection{}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	_, err := r.Run(context.Background(), "")
	assert.Error(t, err)
}

func TestReconciler_MarkerWithoutRemoteID(t *testing.T) {
	tasks := newTestTaskStore(t)
	ctx := context.Background()

	_, err := tasks.Create(ctx, CreateTaskParams{Title: "orphan", Tags: []string{MarkerTag}})
	require.NoError(t, err)

	provider := new(MockProvider)
	provider.On("ListItems", mock.Anything, "list-1").Return([]Item{}, nil)

	r := NewReconciler(tasks, provider, zap.NewNop(), time.Second)
	result, err := r.Run(context.Background(), "list-1")
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "update", result.Errors[0].Phase)
	assert.Zero(t, result.Updated)
}
