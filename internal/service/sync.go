package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/model"
)

// MarkerTag is the durable signal that a task exists on the remote
// provider, either because it was imported from there or exported to it.
const MarkerTag = "synced"

// Metadata keys recording remote provenance on a task.
const (
	MetaRemoteID       = "remote_id"
	MetaRemoteListID   = "remote_list_id"
	MetaRemoteUpdated  = "remote_updated"
	MetaRemotePosition = "remote_position"
)

// Remote item statuses. Anything else maps to pending on import.
const (
	ItemStatusNeedsAction = "needsAction"
	ItemStatusCompleted   = "completed"
)

type Collection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Item struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Status   string `json:"status,omitempty"`
	Due      string `json:"due,omitempty"`
	Updated  string `json:"updated,omitempty"`
	Parent   string `json:"parent,omitempty"`
	Position string `json:"position,omitempty"`
}

// Provider is the four-operation contract of the external task
// service. Implementations live outside this package (internal/gtasks
// for the HTTP adapter); the reconciler never reimplements them.
type Provider interface {
	ListCollections(ctx context.Context) ([]Collection, error)
	ListItems(ctx context.Context, collectionID string) ([]Item, error)
	CreateItem(ctx context.Context, collectionID string, item Item) (Item, error)
	UpdateItem(ctx context.Context, collectionID, itemID string, item Item) (Item, error)
	DeleteItem(ctx context.Context, collectionID, itemID string) error
}

type ItemError struct {
	Phase    string `json:"phase"`
	TaskID   string `json:"task_id,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Err      string `json:"error"`
}

type SyncResult struct {
	Imported int         `json:"imported"`
	Exported int         `json:"exported"`
	Updated  int         `json:"updated"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// Reconciler drives one bidirectional sync run: import remote items
// that are not known locally, export local tasks that never left,
// push updates for local tasks newer than the remote copy. State
// between runs lives only in each task's tags and metadata, so an
// aborted run is repaired by the next one.
type Reconciler struct {
	tasks    *TaskStore
	provider Provider
	logger   *zap.Logger
	timeout  time.Duration
}

func NewReconciler(tasks *TaskStore, provider Provider, logger *zap.Logger, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{tasks: tasks, provider: provider, logger: logger, timeout: timeout}
}

// Run syncs against collectionID, or the provider's first collection
// when empty. Individual item failures land in the result; only a
// failure to reach the provider at all aborts the run.
func (r *Reconciler) Run(ctx context.Context, collectionID string) (SyncResult, error) {
	result := SyncResult{}

	if collectionID == "" {
		var collections []Collection
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			collections, err = r.provider.ListCollections(ctx)
			return err
		})
		if err != nil {
			return result, fmt.Errorf("list collections: %w", err)
		}
		if len(collections) == 0 {
			return result, errors.New("no task collections on remote")
		}
		collectionID = collections[0].ID
	}

	r.importPhase(ctx, collectionID, &result)
	r.exportPhase(ctx, collectionID, &result)
	r.updatePhase(ctx, collectionID, &result)

	r.logger.Info("sync run finished",
		zap.String("collection", collectionID),
		zap.Int("imported", result.Imported),
		zap.Int("exported", result.Exported),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (r *Reconciler) importPhase(ctx context.Context, collectionID string, result *SyncResult) {
	var items []Item
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		items, err = r.provider.ListItems(ctx, collectionID)
		return err
	})
	if err != nil {
		result.Errors = append(result.Errors, ItemError{Phase: "import", Err: err.Error()})
		return
	}

	byRemoteID := map[string]struct{}{}
	byTitle := map[string]struct{}{}
	for _, t := range r.tasks.List() {
		if id, ok := t.Metadata[MetaRemoteID].(string); ok && id != "" {
			byRemoteID[id] = struct{}{}
		}
		// Title matching is an approximate fallback and only ever
		// applied to tasks already known to be synced.
		if t.HasTag(MarkerTag) {
			byTitle[normalizeTitle(t.Title)] = struct{}{}
		}
	}

	for _, item := range items {
		if _, ok := byRemoteID[item.ID]; ok {
			continue
		}
		if _, ok := byTitle[normalizeTitle(item.Title)]; ok {
			continue
		}
		if err := r.importItem(ctx, collectionID, item); err != nil {
			result.Errors = append(result.Errors, ItemError{
				Phase:    "import",
				RemoteID: item.ID,
				Title:    item.Title,
				Err:      err.Error(),
			})
			continue
		}
		result.Imported++
	}
}

func (r *Reconciler) importItem(ctx context.Context, collectionID string, item Item) error {
	title := item.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled Task"
	}

	// Malformed due dates are dropped, never fail the item.
	var due *time.Time
	if item.Due != "" {
		if parsed, err := parseRemoteTime(item.Due); err == nil {
			due = &parsed
		} else {
			r.logger.Warn("dropping malformed due date",
				zap.String("remote_id", item.ID), zap.String("due", item.Due))
		}
	}

	t, err := r.tasks.Create(ctx, CreateTaskParams{
		Title:       title,
		Description: item.Notes,
		DueDate:     due,
		Tags:        []string{MarkerTag},
	})
	if err != nil {
		return err
	}

	if item.Status == ItemStatusCompleted {
		if _, err := r.tasks.UpdateStatus(ctx, t.ID, model.StatusCompleted); err != nil {
			return err
		}
	}

	// Pin updated_at to the remote timestamp: a just-imported task is an
	// exact copy of the remote, not a local edit to push back.
	_, err = r.tasks.markSynced(ctx, t.ID, map[string]any{
		MetaRemoteID:       item.ID,
		MetaRemoteListID:   collectionID,
		MetaRemoteUpdated:  item.Updated,
		MetaRemotePosition: item.Position,
	}, remotePin(item.Updated))
	return err
}

func (r *Reconciler) exportPhase(ctx context.Context, collectionID string, result *SyncResult) {
	for _, t := range r.tasks.List() {
		if t.HasTag(MarkerTag) {
			continue
		}

		var created Item
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			created, err = r.provider.CreateItem(ctx, collectionID, itemFromTask(t))
			return err
		})
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				Phase:  "export",
				TaskID: t.ID,
				Title:  t.Title,
				Err:    err.Error(),
			})
			continue
		}

		meta := map[string]any{
			MetaRemoteID:     created.ID,
			MetaRemoteListID: collectionID,
		}
		if created.Updated != "" {
			meta[MetaRemoteUpdated] = created.Updated
		}
		if _, err := r.tasks.markSynced(ctx, t.ID, meta, remotePin(created.Updated)); err != nil {
			result.Errors = append(result.Errors, ItemError{Phase: "export", TaskID: t.ID, Err: err.Error()})
			continue
		}
		result.Exported++
	}
}

func (r *Reconciler) updatePhase(ctx context.Context, collectionID string, result *SyncResult) {
	for _, t := range r.tasks.List() {
		if !t.HasTag(MarkerTag) || !r.stale(t) {
			continue
		}

		remoteID, _ := t.Metadata[MetaRemoteID].(string)
		if remoteID == "" {
			result.Errors = append(result.Errors, ItemError{
				Phase:  "update",
				TaskID: t.ID,
				Title:  t.Title,
				Err:    "task carries marker tag but no remote id",
			})
			continue
		}

		var updated Item
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			updated, err = r.provider.UpdateItem(ctx, collectionID, remoteID, itemFromTask(t))
			return err
		})
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				Phase:    "update",
				TaskID:   t.ID,
				RemoteID: remoteID,
				Title:    t.Title,
				Err:      err.Error(),
			})
			continue
		}

		if updated.Updated != "" {
			if _, err := r.tasks.markSynced(ctx, t.ID, map[string]any{MetaRemoteUpdated: updated.Updated}, remotePin(updated.Updated)); err != nil {
				result.Errors = append(result.Errors, ItemError{Phase: "update", TaskID: t.ID, Err: err.Error()})
				continue
			}
		}
		result.Updated++
	}
}

// stale reports whether the local task should overwrite the remote
// copy. Missing or unparseable remote timestamps count as stale;
// otherwise only a strictly newer local updated_at pushes. Last writer
// wins, whole record: there is no field-level merge.
func (r *Reconciler) stale(t model.Task) bool {
	raw, _ := t.Metadata[MetaRemoteUpdated].(string)
	if raw == "" {
		return true
	}
	remote, err := parseRemoteTime(raw)
	if err != nil {
		return true
	}
	return t.UpdatedAt.After(remote)
}

func (r *Reconciler) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

func itemFromTask(t model.Task) Item {
	item := Item{
		Title:  t.Title,
		Notes:  t.Description,
		Status: ItemStatusNeedsAction,
	}
	if t.Status == model.StatusCompleted {
		item.Status = ItemStatusCompleted
	}
	if t.DueDate != nil {
		item.Due = t.DueDate.Format(time.RFC3339)
	}
	return item
}

// remotePin parses a remote timestamp into the updated_at pin for
// markSynced. After a sync write the task matches the remote copy, so
// updated_at aligns with remote_updated; only a strictly later local
// edit makes it stale again. Empty or unparseable stamps pin nothing.
func remotePin(stamp string) *time.Time {
	if stamp == "" {
		return nil
	}
	parsed, err := parseRemoteTime(stamp)
	if err != nil {
		return nil
	}
	return &parsed
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func parseRemoteTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
