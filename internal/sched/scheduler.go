// Package sched owns active timers and the notifications they produce.
package sched

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/refresh"
	"github.com/google/uuid"
)

// Refresh delays, staggered so timer and notification list refreshes do
// not land on the store at once.
const (
	startedRefreshDelay       = 800 * time.Millisecond
	completedTimersDelay      = 1000 * time.Millisecond
	completedNotificationsDly = 1200 * time.Millisecond
)

// NotificationSink receives timer notifications. Fire-and-forget; the
// implementation must not propagate failures.
type NotificationSink interface {
	Show(ctx context.Context, n domain.Notification)
}

// SoundPlayer plays the completion sound for a user. Best-effort.
type SoundPlayer interface {
	PlayNotificationSound(userID string) bool
}

// Refresher schedules a debounced cache refresh for a resource key.
type Refresher interface {
	Request(resourceKey string, delay time.Duration)
}

type activeTimer struct {
	id        string
	userID    string
	label     string
	expiresAt time.Time
	timer     *time.Timer
}

// Scheduler owns the active-timer map for its lifetime. Each created
// outcome with a positive duration registers a delayed completion
// callback; Stop tears everything down and short-circuits callbacks that
// are already in flight, so a stopped scheduler produces no side effects.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*activeTimer
	started map[string]map[string]struct{} // userID -> labels already notified this resolution
	sink    NotificationSink
	sound   SoundPlayer
	refresh Refresher
	logger  *slog.Logger
	stopped bool
}

// New creates a scheduler.
func New(sink NotificationSink, sound SoundPlayer, refresher Refresher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		timers:  make(map[string]*activeTimer),
		started: make(map[string]map[string]struct{}),
		sink:    sink,
		sound:   sound,
		refresh: refresher,
		logger:  logger,
	}
}

// ResetCycle clears the set of labels already notified for one user. The
// user's orchestrator calls this once per submission so duplicate outcomes
// within a single resolution are suppressed but a later submission can
// reuse the label. One user's submissions never touch another user's
// dedupe state.
func (s *Scheduler) ResetCycle(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.started, userID)
}

// HandleOutcome routes one timer outcome for a user.
func (s *Scheduler) HandleOutcome(userID string, out domain.TimerOutcome) {
	switch out.Action {
	case domain.TimerCreated:
		s.handleCreated(userID, out)
	case domain.TimerCompleted:
		s.notifyCompleted(userID, out.Label)
	case domain.TimerCancelled:
		// Idempotent: no prior created entry is required.
		s.notifyCancelled(userID, out.Label)
	default:
		s.logger.Warn("ignoring timer outcome with unknown action",
			"action", out.Action, "user_id", userID)
	}
}

func (s *Scheduler) handleCreated(userID string, out domain.TimerOutcome) {
	if out.DurationMs <= 0 {
		s.logger.Warn("ignoring created timer with non-positive duration",
			"label", out.Label, "user_id", userID)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	// A repeated label within one user's resolution is a duplicate
	// outcome for the same request; skip it entirely.
	if _, seen := s.started[userID][out.Label]; seen {
		s.mu.Unlock()
		s.logger.Debug("suppressing duplicate timer notification",
			"label", out.Label, "user_id", userID)
		return
	}
	if s.started[userID] == nil {
		s.started[userID] = make(map[string]struct{})
	}
	s.started[userID][out.Label] = struct{}{}

	id := uuid.NewString()
	d := time.Duration(out.DurationMs) * time.Millisecond
	at := &activeTimer{
		id:        id,
		userID:    userID,
		label:     out.Label,
		expiresAt: time.Now().Add(d),
	}
	at.timer = time.AfterFunc(d, func() { s.complete(id) })
	s.timers[id] = at
	s.mu.Unlock()

	s.logger.Info("timer started",
		"timer_id", id, "label", out.Label, "duration_ms", out.DurationMs, "user_id", userID)

	s.sink.Show(context.Background(), domain.Notification{
		UserID:     userID,
		Title:      "Timer Started",
		Message:    "Timer for " + out.Label + " has been started",
		Type:       "info",
		Persistent: false,
	})
	s.refresh.Request(refresh.KeyTimers, startedRefreshDelay)
}

// complete fires when a timer expires. A stopped scheduler skips all
// notification work so a torn-down context has no dangling side effects.
func (s *Scheduler) complete(id string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	at, ok := s.timers[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	s.logger.Info("timer complete", "timer_id", id, "label", at.label, "user_id", at.userID)
	s.notifyCompleted(at.userID, at.label)
}

func (s *Scheduler) notifyCompleted(userID, label string) {
	if label == "" {
		label = "task"
	}
	if !s.sound.PlayNotificationSound(userID) {
		s.logger.Warn("failed to play timer completion sound", "user_id", userID)
	}
	s.sink.Show(context.Background(), domain.Notification{
		UserID:     userID,
		Title:      "Timer Complete",
		Message:    "Your timer for " + label + " is complete",
		Type:       "success",
		Persistent: true,
	})
	s.refresh.Request(refresh.KeyTimers, completedTimersDelay)
	s.refresh.Request(refresh.KeyNotifications, completedNotificationsDly)
}

func (s *Scheduler) notifyCancelled(userID, label string) {
	if label == "" {
		label = "task"
	}
	s.sink.Show(context.Background(), domain.Notification{
		UserID:     userID,
		Title:      "Timer Cancelled",
		Message:    "Your timer for " + label + " has been cancelled",
		Type:       "info",
		Persistent: false,
	})
	s.refresh.Request(refresh.KeyTimers, completedTimersDelay)
	s.refresh.Request(refresh.KeyNotifications, completedNotificationsDly)
}

// Cancel stops an active timer by ID and emits the cancellation
// notification. Unknown IDs still notify (idempotent cancel).
func (s *Scheduler) Cancel(userID, id string) {
	label := ""

	s.mu.Lock()
	if at, ok := s.timers[id]; ok && at.userID == userID {
		at.timer.Stop()
		delete(s.timers, id)
		label = at.label
	}
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return
	}
	s.notifyCancelled(userID, label)
}

// Active returns a snapshot of the user's running timers, soonest first.
func (s *Scheduler) Active(userID string) []domain.ActiveTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ActiveTimer, 0, len(s.timers))
	for _, at := range s.timers {
		if at.userID != userID {
			continue
		}
		out = append(out, domain.ActiveTimer{
			ID:        at.id,
			UserID:    at.userID,
			Label:     at.label,
			ExpiresAt: at.expiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// Stop cancels every active timer and suppresses any in-flight callbacks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, at := range s.timers {
		at.timer.Stop()
		delete(s.timers, id)
	}
}
