package handlers

import (
	"net/http"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
)

type ActivitiesResponse struct {
	Success    bool              `json:"success"`
	Activities []models.Activity `json:"activities"`
}

// ListActivities handles GET /api/activities: the ten newest, newest first.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	list, err := h.Activities.Recent(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivitiesResponse{Success: true, Activities: list})
}
