package routes

import (
	"net/http"

	"github.com/AnshRaj112/agentdesk-backend/internal/handlers"
	"github.com/AnshRaj112/agentdesk-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Setup mounts the API under /api. Everything except register, login and
// the OAuth callback requires a session.
func Setup(r chi.Router, h *handlers.Handler, sessions middleware.SessionVerifier) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/auth/twitter/callback", h.TwitterCallback)

		// The websocket handshake authenticates itself (token query param).
		r.Get("/ws/activities", h.ActivityFeed)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions))

			r.Post("/logout", h.Logout)

			r.Get("/user/me", h.Me)
			r.Put("/user/profile", h.UpdateProfile)
			r.Put("/user/password", h.ChangePassword)
			r.Delete("/user", h.DeleteAccount)
			r.Post("/user/avatar", h.UploadAvatar)
			r.Post("/user/twitter-tokens", h.AttachTwitterTokens)

			r.Get("/auth/twitter/link", h.BeginTwitterLink)

			r.Post("/youtube/summarize", h.SummarizeVideo)
			r.Post("/youtube/question", h.AskQuestion)

			r.Post("/research/generate", h.GeneratePaper)

			r.Post("/twitter/generate", h.GenerateTweet)
			r.Post("/twitter/generate-thread", h.GenerateThread)
			r.Post("/twitter/post", h.PostTweet)
			r.Post("/twitter/post-thread", h.PostThread)
			r.Get("/twitter/verify", h.VerifyTwitter)
			r.Post("/twitter/refresh", h.RefreshTwitter)

			r.Get("/activities", h.ListActivities)
		})
	})
}
