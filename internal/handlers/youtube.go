package handlers

import (
	"net/http"
)

type SummarizeRequest struct {
	URL string `json:"url"`
}

type SummarizeResponse struct {
	Success    bool   `json:"success"`
	Summary    string `json:"summary"`
	VideoTitle string `json:"videoTitle"`
	VideoID    string `json:"videoId"`
}

type QuestionRequest struct {
	VideoID  string `json:"videoId"`
	Question string `json:"question"`
}

type AnswerResponse struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer"`
}

// SummarizeVideo handles POST /api/youtube/summarize.
func (h *Handler) SummarizeVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req SummarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.YouTube.Summarize(r.Context(), id.UserID, req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SummarizeResponse{
		Success:    true,
		Summary:    res.Summary,
		VideoTitle: res.VideoTitle,
		VideoID:    res.VideoID,
	})
}

// AskQuestion handles POST /api/youtube/question.
func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	var req QuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	answer, err := h.YouTube.Answer(r.Context(), req.VideoID, req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Success: true, Answer: answer})
}
