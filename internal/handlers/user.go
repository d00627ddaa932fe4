package handlers

import (
	"net/http"
	"strings"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/AnshRaj112/agentdesk-backend/internal/services"
)

const maxAvatarBytes = 5 << 20

type UserResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Token   string             `json:"token,omitempty"`
	User    *models.PublicUser `json:"user,omitempty"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type TwitterTokensRequest struct {
	TwitterToken        string `json:"twitterToken"`
	TwitterRefreshToken string `json:"twitterRefreshToken"`
}

// Me handles GET /api/user/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	user, err := h.Credentials.Profile(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pub := user.Public()
	connected := user.HasTwitterTokens() || id.Twitter != nil
	pub.TwitterConnected = &connected
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: &pub})
}

// UpdateProfile handles PUT /api/user/profile. The session carries name and
// email, so a fresh token is returned.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Credentials.UpdateProfile(r.Context(), id.UserID, req.Name, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.Credentials.IssueFor(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pub := user.Public()
	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		Message: "Profile updated successfully",
		Token:   token,
		User:    &pub,
	})
}

// ChangePassword handles PUT /api/user/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Credentials.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}

// DeleteAccount handles DELETE /api/user.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.Credentials.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted successfully")
}

// UploadAvatar handles POST /api/user/avatar (multipart field "avatar").
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.Avatars == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Avatar uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+(1<<10))
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		writeMessage(w, http.StatusBadRequest, "Avatar must be an image")
		return
	}

	url, err := h.Avatars.UploadAvatar(r.Context(), id.UserID, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Credentials.SetAvatar(r.Context(), id.UserID, url)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pub := user.Public()
	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		Message: "Avatar uploaded successfully",
		User:    &pub,
	})
}

// AttachTwitterTokens handles POST /api/user/twitter-tokens: the pair is
// stored on the account and a session carrying it is returned.
func (h *Handler) AttachTwitterTokens(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req TwitterTokensRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tw := services.DelegatedTokens{AccessToken: req.TwitterToken, RefreshToken: req.TwitterRefreshToken}
	user, err := h.Vault.Attach(r.Context(), id.UserID, tw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.Sessions.Issue(user, &tw)
	if err != nil {
		writeError(w, r, services.Internal("Failed to issue session", err))
		return
	}

	pub := user.Public()
	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		Message: "Twitter tokens stored successfully",
		Token:   token,
		User:    &pub,
	})
}
