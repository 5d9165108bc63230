// Package api provides HTTP handlers for the TASQI API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bryancris/tasqi-sub000/internal/assistant"
	"github.com/bryancris/tasqi-sub000/internal/identity"
	"github.com/bryancris/tasqi-sub000/internal/refresh"
	"github.com/bryancris/tasqi-sub000/internal/sched"
	"github.com/bryancris/tasqi-sub000/internal/store"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// notificationListLimit caps how many stored notifications one list
// request returns.
const notificationListLimit = 50

// Handler serves the chat, task, timer and notification endpoints.
type Handler struct {
	sessions    *assistant.Manager
	scheduler   *sched.Scheduler
	cache       *refresh.Cache
	repo        store.Repository
	limiter     *RateLimiter
	maxBodySize int64
	logger      *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(sessions *assistant.Manager, scheduler *sched.Scheduler, cache *refresh.Cache, repo store.Repository, limiter *RateLimiter, maxBodySize int64, logger *slog.Logger) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:    sessions,
		scheduler:   scheduler,
		cache:       cache,
		repo:        repo,
		limiter:     limiter,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes registers all API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Get("/api/chat/history", h.HandleChatHistory)
	r.Get("/api/tasks", h.HandleListTasks)
	r.Get("/api/notifications", h.HandleListNotifications)
	r.Get("/api/timers", h.HandleListTimers)
	r.Post("/api/timers/{id}/cancel", h.HandleCancelTimer)
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat runs one line of user text through the submission pipeline.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "too many messages, slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.Get(r.Context(), userID).Submit(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, assistant.ErrBusy) {
			Error(w, http.StatusConflict, "a message is already being processed")
			return
		}
		h.logger.Error("chat submission failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, res)
}

// HandleChatHistory returns the user's session transcript in order.
func (h *Handler) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	msgs := h.sessions.Get(r.Context(), userID).Transcript().Messages()
	JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// HandleListTasks returns the user's tasks through the refresh cache.
func (h *Handler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	if cached, ok := h.cache.Get(refresh.KeyTasks, userID); ok {
		JSON(w, http.StatusOK, map[string]interface{}{"tasks": cached})
		return
	}

	tasks, err := h.repo.ListTasks(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	h.cache.Put(refresh.KeyTasks, userID, tasks)
	JSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// HandleListNotifications returns the user's stored notifications through
// the refresh cache.
func (h *Handler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	if cached, ok := h.cache.Get(refresh.KeyNotifications, userID); ok {
		JSON(w, http.StatusOK, map[string]interface{}{"notifications": cached})
		return
	}

	notifs, err := h.repo.ListNotifications(r.Context(), userID, notificationListLimit)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	h.cache.Put(refresh.KeyNotifications, userID, notifs)
	JSON(w, http.StatusOK, map[string]interface{}{"notifications": notifs})
}

// HandleListTimers returns the user's running timers, soonest first.
func (h *Handler) HandleListTimers(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"timers": h.scheduler.Active(userID)})
}

// HandleCancelTimer cancels a running timer by ID. Cancelling an unknown
// or already-finished timer succeeds.
func (h *Handler) HandleCancelTimer(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "user identity required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "timer id required")
		return
	}

	h.scheduler.Cancel(userID, id)
	JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
