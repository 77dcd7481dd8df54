package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BuzzLyutic/tasksync/internal/model"
	"github.com/BuzzLyutic/tasksync/internal/service"
	"github.com/BuzzLyutic/tasksync/pkg/respond"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	category := model.CategoryPersonal
	if req.Category != "" {
		parsed, err := model.ParseCategory(req.Category)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		category = parsed
	}

	h.withManager(w, r, func(m *service.Manager) {
		project, err := m.Projects.Create(r.Context(), req.Name, category, req.Description)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/projects/"+project.ID)
		respond.JSON(w, r, http.StatusCreated, project)
	})
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("category")
	var category *model.Category
	if raw != "" {
		parsed, err := model.ParseCategory(raw)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		category = &parsed
	}

	h.withManager(w, r, func(m *service.Manager) {
		if category != nil {
			respond.JSON(w, r, http.StatusOK, m.Projects.ListByCategory(*category))
			return
		}
		respond.JSON(w, r, http.StatusOK, m.Projects.ListAll())
	})
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	update := model.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Category != nil {
		category, err := model.ParseCategory(*req.Category)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		update.Category = &category
	}

	h.withManager(w, r, func(m *service.Manager) {
		project, err := m.Projects.Update(r.Context(), id, update)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, project)
	})
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withManager(w, r, func(m *service.Manager) {
		cleared, err := m.DeleteProject(r.Context(), id)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, map[string]any{
			"project_id":       id,
			"tasks_unassigned": cleared,
		})
	})
}
