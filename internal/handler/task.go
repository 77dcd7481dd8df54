package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BuzzLyutic/tasksync/internal/model"
	"github.com/BuzzLyutic/tasksync/internal/service"
	"github.com/BuzzLyutic/tasksync/pkg/respond"
)

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Project     string   `json:"project"`
	ProjectID   string   `json:"project_id"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	params := service.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Project:     req.Project,
		ProjectID:   req.ProjectID,
		Tags:        req.Tags,
	}
	if req.Priority != "" {
		priority, err := model.ParsePriority(req.Priority)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		params.Priority = priority
	}
	if req.Category != "" {
		category, err := model.ParseCategory(req.Category)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		params.Category = category
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid due_date: %v", err))
			return
		}
		params.DueDate = &due
	}

	h.withManager(w, r, func(m *service.Manager) {
		task, err := m.Tasks.Create(r.Context(), params)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/tasks/"+task.ID)
		respond.JSON(w, r, http.StatusCreated, task)
	})
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter model.TaskFilter
	if raw := q.Get("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("priority"); raw != "" {
		priority, err := model.ParsePriority(raw)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Priority = &priority
	}
	if raw := q.Get("category"); raw != "" {
		category, err := model.ParseCategory(raw)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Category = &category
	}
	if raw := q.Get("project"); raw != "" {
		filter.Project = &raw
	}
	if raw := q.Get("tag"); raw != "" {
		filter.Tag = &raw
	}

	h.withManager(w, r, func(m *service.Manager) {
		if query := q.Get("q"); query != "" {
			respond.JSON(w, r, http.StatusOK, m.Tasks.Search(query))
			return
		}
		respond.JSON(w, r, http.StatusOK, m.Tasks.ListFiltered(filter))
	})
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withManager(w, r, func(m *service.Manager) {
		task, err := m.Tasks.Get(id)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, task)
	})
}

func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h.withManager(w, r, func(m *service.Manager) {
		task, err := m.Tasks.UpdateStatus(r.Context(), id, status)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, task)
	})
}

type updateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	Category    *string   `json:"category"`
	Project     *string   `json:"project"`
	ProjectID   *string   `json:"project_id"`
	DueDate     *string   `json:"due_date"`
	Tags        *[]string `json:"tags"`
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	update := service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Project:     req.Project,
		ProjectID:   req.ProjectID,
		Tags:        req.Tags,
	}
	if req.Priority != nil {
		priority, err := model.ParsePriority(*req.Priority)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		update.Priority = &priority
	}
	if req.Category != nil {
		category, err := model.ParseCategory(*req.Category)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		update.Category = &category
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			update.ClearDue = true
		} else {
			due, err := time.Parse(time.RFC3339, *req.DueDate)
			if err != nil {
				respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid due_date: %v", err))
				return
			}
			update.DueDate = &due
		}
	}

	h.withManager(w, r, func(m *service.Manager) {
		task, err := m.Tasks.Update(r.Context(), id, update)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, task)
	})
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withManager(w, r, func(m *service.Manager) {
		if err := m.Tasks.Delete(r.Context(), id); err != nil {
			h.handleErrors(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) OverdueTasks(w http.ResponseWriter, r *http.Request) {
	h.withManager(w, r, func(m *service.Manager) {
		respond.JSON(w, r, http.StatusOK, m.Tasks.Overdue())
	})
}

func (h *Handler) HierarchicalTasks(w http.ResponseWriter, r *http.Request) {
	h.withManager(w, r, func(m *service.Manager) {
		respond.JSON(w, r, http.StatusOK, m.Hierarchy())
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.withManager(w, r, func(m *service.Manager) {
		respond.JSON(w, r, http.StatusOK, m.Tasks.Statistics())
	})
}
