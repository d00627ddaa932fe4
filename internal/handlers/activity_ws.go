package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/middleware"
	"github.com/AnshRaj112/agentdesk-backend/internal/services"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 60 * time.Second
)

// newActivityUpgrader builds the upgrader for activity feed connections.
// CORS does not apply to websocket handshakes, so Origin is checked here.
// Handshakes without an Origin pass; with no allowed origins configured
// only same-host browser handshakes do.
func newActivityUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(allowed) == 0 {
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			}
			_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
			return ok
		},
	}
}

// ActivityFeed streams the user's new activities over a WebSocket.
// Browsers cannot set headers on the handshake, so the session token may
// also be passed as the `token` query parameter.
func (h *Handler) ActivityFeed(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, services.ErrUnauthorized.Message)
		return
	}
	id, err := h.Sessions.Verify(r.Context(), token)
	if err != nil {
		if services.KindOf(err) == services.KindInternal {
			writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusUnauthorized, services.ErrTokenInvalid.Message)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "activity feed handshake rejected",
			slog.String("origin", r.Header.Get("Origin")), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.Hub.Register(id.UserID)
	defer unsubscribe()
	slog.InfoContext(r.Context(), "activity feed opened", slog.String("user_id", id.UserID))

	// The feed is one-way; the reader only handles pongs and close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4 * 1024)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
