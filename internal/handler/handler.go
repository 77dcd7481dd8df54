package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/repo"
	"github.com/BuzzLyutic/tasksync/internal/service"
	"github.com/BuzzLyutic/tasksync/internal/worker"
	"github.com/BuzzLyutic/tasksync/pkg/respond"
)

const defaultUserID = "default"

// Handler is the thin HTTP shell over the per-user managers. All the
// real behavior lives in internal/service.
type Handler struct {
	registry          *service.Registry
	gate              *worker.Gate
	provider          service.Provider
	syncTimeout       time.Duration
	defaultCollection string
	logger            *zap.Logger
}

func New(registry *service.Registry, provider service.Provider, syncTimeout time.Duration, defaultCollection string, logger *zap.Logger) *Handler {
	return &Handler{
		registry:          registry,
		gate:              worker.NewGate(),
		provider:          provider,
		syncTimeout:       syncTimeout,
		defaultCollection: defaultCollection,
		logger:            logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.CreateTask)
			r.Get("/", h.ListTasks)
			r.Get("/overdue", h.OverdueTasks)
			r.Get("/hierarchical", h.HierarchicalTasks)
			r.Get("/{id}", h.GetTask)
			r.Put("/{id}", h.UpdateTaskStatus)
			r.Patch("/{id}", h.UpdateTask)
			r.Delete("/{id}", h.DeleteTask)
		})
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)
			r.Get("/", h.ListProjects)
			r.Put("/{id}", h.UpdateProject)
			r.Delete("/{id}", h.DeleteProject)
		})
		r.Get("/stats", h.Stats)
		r.Post("/sync", h.Sync)
		r.Post("/import", h.BulkImport)
		r.Get("/export", h.BulkExport)
	})
}

// withManager resolves the caller's manager and runs fn under the
// per-user gate so snapshot rewrites never interleave.
func (h *Handler) withManager(w http.ResponseWriter, r *http.Request, fn func(*service.Manager)) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = defaultUserID
	}

	h.gate.Do(userID, func() {
		m, err := h.registry.Manager(r.Context(), userID)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		fn(m)
	})
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrorLocked):
		respond.Error(w, r, http.StatusServiceUnavailable, "store is locked by another process")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
