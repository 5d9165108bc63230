package assistant

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bryancris/tasqi-sub000/internal/store"
)

// historyRestoreLimit caps how much persisted history is loaded back into
// a fresh session transcript.
const historyRestoreLimit = 200

// Manager hands out one Orchestrator per user and keeps it for the life
// of the process so the in-flight guard and transcript survive between
// requests.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Orchestrator

	backend   Backend
	timers    TimerHandler
	refresher Refresher
	sink      NotificationSink
	repo      store.Repository
	logger    *slog.Logger
}

// NewManager creates a session manager. repo may be nil to disable
// persistence.
func NewManager(b Backend, timers TimerHandler, refresher Refresher, sink NotificationSink, repo store.Repository, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:  make(map[string]*Orchestrator),
		backend:   b,
		timers:    timers,
		refresher: refresher,
		sink:      sink,
		repo:      repo,
		logger:    logger,
	}
}

// Get returns the user's orchestrator, creating and restoring it on first
// use.
func (m *Manager) Get(ctx context.Context, userID string) *Orchestrator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.sessions[userID]; ok {
		return o
	}

	o := NewOrchestrator(userID, m.backend, m.timers, m.refresher, m.sink, m.repo, m.logger)
	if err := o.Restore(ctx, historyRestoreLimit); err != nil {
		m.logger.Warn("failed to restore chat history", "error", err, "user_id", userID)
	}
	m.sessions[userID] = o
	return o
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
