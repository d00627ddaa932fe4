package handlers

import (
	"net/http"

	"github.com/AnshRaj112/agentdesk-backend/internal/services"
)

type ResearchRequest struct {
	Topic          string `json:"topic"`
	PaperType      string `json:"paperType"`
	WordCount      string `json:"wordCount"`
	IncludeSources bool   `json:"includeSources"`
	IncludeCharts  bool   `json:"includeCharts"`
}

type ResearchResponse struct {
	Success bool              `json:"success"`
	Paper   string            `json:"paper"`
	Topic   string            `json:"topic"`
	Sources []services.Source `json:"sources,omitempty"`
}

// GeneratePaper handles POST /api/research/generate.
func (h *Handler) GeneratePaper(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req ResearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	paper, err := h.Research.Generate(r.Context(), id.UserID, services.PaperRequest{
		Topic:          req.Topic,
		PaperType:      req.PaperType,
		WordCount:      req.WordCount,
		IncludeSources: req.IncludeSources,
		IncludeCharts:  req.IncludeCharts,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResearchResponse{
		Success: true,
		Paper:   paper.Paper,
		Topic:   paper.Topic,
		Sources: paper.Sources,
	})
}
