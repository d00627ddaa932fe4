package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AnshRaj112/agentdesk-backend/internal/middleware"
	"github.com/AnshRaj112/agentdesk-backend/internal/services"
	"github.com/gorilla/websocket"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators shared by every handler. They are built once at
// startup; optional integrations are nil when not configured.
type Deps struct {
	Credentials *services.CredentialService
	Sessions    *services.SessionManager
	Vault       *services.TokenVault
	TwitterAuth *services.TwitterAuth
	YouTube     *services.YouTubeAgent
	Research    *services.ResearchAgent
	Twitter     *services.TwitterAgent
	Activities  *services.ActivityService
	Hub         *services.ActivityHub
	Avatars     services.AvatarUploader
	FrontendURL string

	// AllowedOrigins may open the activity feed from a browser.
	AllowedOrigins []string
}

// Handler serves the HTTP API.
type Handler struct {
	Deps

	upgrader websocket.Upgrader
}

func New(d Deps) *Handler {
	return &Handler{Deps: d, upgrader: newActivityUpgrader(d.AllowedOrigins)}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: status < 400, Message: message})
}

// writeError maps err to its status once, at the boundary.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.KindOf(err)
	if kind == services.KindInternal || kind == services.KindUpstream {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
	}
	writeMessage(w, kind.Status(), services.MessageOf(err))
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return services.Validation("Request body too large")
		case errors.Is(err, io.EOF):
			return services.Validation("Request body is required")
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			return services.Validation("Unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		return services.Validation("Invalid request body")
	}
	if dec.More() {
		return services.Validation("Request body must contain a single JSON object")
	}
	return nil
}

// identity returns the session identity set by middleware.RequireSession.
func identity(w http.ResponseWriter, r *http.Request) (*services.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, services.ErrUnauthorized.Message)
	}
	return id, ok
}
