// Package notify delivers notifications to connected clients and persists
// the ones that must survive a reconnect.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/store"
	"github.com/google/uuid"
)

// subscriberBuffer bounds each subscriber's channel; slow consumers drop
// notifications rather than block the pipeline.
const subscriberBuffer = 16

// Center is the notification sink. Show is fire-and-forget: failures are
// logged, never propagated.
type Center struct {
	mu     sync.Mutex
	subs   map[int64]subscriber
	nextID int64
	repo   store.Repository
	logger *slog.Logger
	closed bool
}

type subscriber struct {
	userID string
	ch     chan domain.Notification
}

// NewCenter creates a notification center. repo may be nil, in which case
// persistent notifications are push-only.
func NewCenter(repo store.Repository, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		subs:   make(map[int64]subscriber),
		repo:   repo,
		logger: logger,
	}
}

// Show delivers a notification: persists it when Persistent is set, then
// fans it out to the user's connected clients. Never returns an error.
func (c *Center) Show(ctx context.Context, n domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if n.Persistent && c.repo != nil {
		if err := c.repo.SaveNotification(ctx, &n); err != nil {
			c.logger.Warn("failed to persist notification",
				"notification_id", n.ID,
				"user_id", n.UserID,
				"error", err)
		}
	}

	c.Push(n)
}

// Push fans a notification out to the user's connected clients without
// persisting it. Slow subscribers are skipped.
func (c *Center) Push(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	for id, sub := range c.subs {
		if sub.userID != n.UserID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			c.logger.Warn("dropping notification for slow subscriber",
				"subscriber_id", id,
				"user_id", n.UserID)
		}
	}
}

// Subscribe registers a delivery channel for a user's notifications.
// The returned channel is closed by Unsubscribe or Close.
func (c *Center) Subscribe(userID string) (int64, <-chan domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	ch := make(chan domain.Notification, subscriberBuffer)
	if c.closed {
		close(ch)
		return id, ch
	}
	c.subs[id] = subscriber{userID: userID, ch: ch}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (c *Center) Unsubscribe(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.subs[id]; ok {
		close(sub.ch)
		delete(c.subs, id)
	}
}

// Close shuts down the center. Subsequent Show/Push calls are no-ops.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
}

// Chime delegates notification-sound playback to the client by pushing a
// sound-flagged notification; the server has no audio device.
type Chime struct {
	Center *Center
}

// PlayNotificationSound pushes a sound cue to the user's clients.
// Best-effort: a false return means playback did not happen and is
// non-fatal.
func (c Chime) PlayNotificationSound(userID string) bool {
	if c.Center == nil {
		return false
	}
	c.Center.Push(domain.Notification{
		UserID:    userID,
		Type:      "sound",
		Sound:     true,
		CreatedAt: time.Now(),
	})
	return true
}
