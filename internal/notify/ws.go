package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/identity"
	"github.com/coder/websocket"
)

const wsKeepaliveInterval = 30 * time.Second

// WebSocketHandler streams a user's notifications to the browser.
type WebSocketHandler struct {
	center        *Center
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new notification WebSocket handler.
func NewWebSocketHandler(center *Center, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		center:        center,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("Notification stream connected", "user_id", userID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	subID, ch := h.center.Subscribe(userID)
	defer h.center.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	keepalive := time.NewTicker(wsKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := h.writeJSON(ctx, ws, n); err != nil {
				slog.Debug("Failed to write notification", "error", err, "user_id", userID)
				return
			}
		case <-keepalive.C:
			if err := ws.Ping(ctx); err != nil {
				slog.Debug("Keepalive ping failed", "error", err, "user_id", userID)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.HasPrefix(origin, h.allowedOrigin)
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
