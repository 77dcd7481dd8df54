package handler

import (
	"encoding/json"
	"net/http"

	"github.com/BuzzLyutic/tasksync/internal/service"
	"github.com/BuzzLyutic/tasksync/pkg/respond"
)

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "no task provider configured")
		return
	}

	var req struct {
		CollectionID string `json:"collection_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, r, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.CollectionID == "" {
		req.CollectionID = h.defaultCollection
	}

	h.withManager(w, r, func(m *service.Manager) {
		reconciler := service.NewReconciler(m.Tasks, h.provider, h.logger, h.syncTimeout)
		result, err := reconciler.Run(r.Context(), req.CollectionID)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, result)
	})
}

func (h *Handler) BulkImport(w http.ResponseWriter, r *http.Request) {
	var doc service.BulkDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	h.withManager(w, r, func(m *service.Manager) {
		result, err := m.BulkImport(r.Context(), doc)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusOK, result)
	})
}

func (h *Handler) BulkExport(w http.ResponseWriter, r *http.Request) {
	h.withManager(w, r, func(m *service.Manager) {
		respond.JSON(w, r, http.StatusOK, m.BulkExport())
	})
}
