package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AnshRaj112/agentdesk-backend/internal/services"
)

type GenerateTweetRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateTweetResponse struct {
	Success bool   `json:"success"`
	Tweet   string `json:"tweet"`
}

type GenerateThreadRequest struct {
	Topic      string `json:"topic"`
	TweetCount int    `json:"tweetCount"`
}

type GenerateThreadResponse struct {
	Success bool     `json:"success"`
	Tweets  []string `json:"tweets"`
	Topic   string   `json:"topic"`
}

type PostTweetRequest struct {
	Content string `json:"content"`
}

type PostTweetResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Tweet   *services.PostedTweet `json:"tweet"`
}

type PostThreadRequest struct {
	Tweets []string `json:"tweets"`
}

type PostThreadResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Tweets  []services.PostedTweet `json:"tweets"`
}

// ThreadFailureResponse reports where a thread chain stopped. PostedIDs are
// the tweets that remain on the timeline.
type ThreadFailureResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	FailedIndex int      `json:"failedIndex"`
	PostedIDs   []string `json:"postedIds"`
}

type VerifyResponse struct {
	Success   bool   `json:"success"`
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
}

// GenerateTweet handles POST /api/twitter/generate.
func (h *Handler) GenerateTweet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req GenerateTweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tweet, err := h.Twitter.Generate(r.Context(), id.UserID, req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateTweetResponse{Success: true, Tweet: tweet})
}

// GenerateThread handles POST /api/twitter/generate-thread.
func (h *Handler) GenerateThread(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req GenerateThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tweets, err := h.Twitter.GenerateThread(r.Context(), id.UserID, req.Topic, req.TweetCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateThreadResponse{Success: true, Tweets: tweets, Topic: req.Topic})
}

// PostTweet handles POST /api/twitter/post.
func (h *Handler) PostTweet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req PostTweetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tweet, err := h.Twitter.Post(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostTweetResponse{Success: true, Message: "Tweet posted successfully", Tweet: tweet})
}

// PostThread handles POST /api/twitter/post-thread.
func (h *Handler) PostThread(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req PostThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, services.Validation("Invalid thread format"))
		return
	}

	tweets, err := h.Twitter.PostThread(r.Context(), id, req.Tweets)
	if err != nil {
		var chainErr *services.ThreadPostError
		if errors.As(err, &chainErr) {
			posted := chainErr.Posted
			if posted == nil {
				posted = []string{}
			}
			slog.WarnContext(r.Context(), "thread post stopped",
				slog.String("user_id", id.UserID),
				slog.Int("failed_index", chainErr.Index),
				slog.Int("posted", len(posted)),
				slog.String("error", err.Error()),
			)
			writeJSON(w, services.KindOf(err).Status(), ThreadFailureResponse{
				Success:     false,
				Message:     chainErr.Message(),
				FailedIndex: chainErr.Index,
				PostedIDs:   posted,
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostThreadResponse{Success: true, Message: "Thread posted successfully", Tweets: tweets})
}

// VerifyTwitter handles GET /api/twitter/verify.
func (h *Handler) VerifyTwitter(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	v, err := h.Twitter.Verify(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Success: true, Connected: v.Connected, Username: v.Username})
}
