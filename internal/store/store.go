// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
)

// Repository defines the interface for persisting users, chat history,
// tasks and notifications.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns (nil, nil) when
	// the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// AppendChatMessage persists one transcript entry for a user.
	AppendChatMessage(ctx context.Context, userID string, msg domain.Message) error

	// GetChatHistory returns the user's transcript in append order.
	GetChatHistory(ctx context.Context, userID string, limit int) ([]domain.Message, error)

	// ClearChatHistory removes all stored transcript entries for a user.
	ClearChatHistory(ctx context.Context, userID string) error

	// SaveTask mirrors a backend-created task for local listing.
	SaveTask(ctx context.Context, task *domain.Task) error

	// ListTasks returns the user's tasks, newest first.
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)

	// SaveNotification stores a persistent notification.
	SaveNotification(ctx context.Context, n *domain.Notification) error

	// ListNotifications returns the user's stored notifications, newest first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)

	// GetDueNotifications returns undelivered notifications whose due time
	// has passed.
	GetDueNotifications(ctx context.Context, now time.Time) ([]*domain.Notification, error)

	// MarkNotificationDelivered flags a notification as delivered.
	MarkNotificationDelivered(ctx context.Context, id string) error

	// Ping verifies database connectivity and returns an error if the
	// database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
