package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/AnshRaj112/agentdesk-backend/internal/services"
)

type LinkResponse struct {
	Success          bool   `json:"success"`
	AuthorizationURL string `json:"authorizationUrl"`
}

type TokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token"`
}

func (h *Handler) twitterAuthConfigured(w http.ResponseWriter) bool {
	if h.TwitterAuth == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Twitter integration is not configured")
		return false
	}
	return true
}

// BeginTwitterLink handles GET /api/auth/twitter/link.
func (h *Handler) BeginTwitterLink(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok || !h.twitterAuthConfigured(w) {
		return
	}

	authURL, err := h.TwitterAuth.BeginLink(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LinkResponse{Success: true, AuthorizationURL: authURL})
}

// TwitterCallback handles the provider redirect. The browser is sent back to
// the dashboard with the reissued session token in the URL fragment, or with
// an error flag.
func (h *Handler) TwitterCallback(w http.ResponseWriter, r *http.Request) {
	if !h.twitterAuthConfigured(w) {
		return
	}
	q := r.URL.Query()
	base := strings.TrimRight(h.FrontendURL, "/") + "/dashboard/twitter"

	if providerErr := q.Get("error"); providerErr != "" {
		slog.WarnContext(r.Context(), "twitter authorization denied", slog.String("error", providerErr))
		http.Redirect(w, r, base+"?error=twitter_link_failed", http.StatusFound)
		return
	}

	user, tw, err := h.TwitterAuth.CompleteExchange(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		slog.WarnContext(r.Context(), "twitter link failed", slog.String("error", err.Error()))
		http.Redirect(w, r, base+"?error=twitter_link_failed", http.StatusFound)
		return
	}

	token, err := h.Sessions.Issue(user, tw)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue session after link", slog.String("error", err.Error()))
		http.Redirect(w, r, base+"?error=twitter_link_failed", http.StatusFound)
		return
	}
	http.Redirect(w, r, base+"#token="+url.QueryEscape(token), http.StatusFound)
}

// RefreshTwitter handles POST /api/twitter/refresh.
func (h *Handler) RefreshTwitter(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok || !h.twitterAuthConfigured(w) {
		return
	}

	user, tw, err := h.TwitterAuth.Refresh(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.Sessions.Issue(user, tw)
	if err != nil {
		writeError(w, r, services.Internal("Failed to issue session", err))
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Success: true, Message: "Twitter tokens refreshed", Token: token})
}
