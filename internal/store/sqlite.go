package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		is_ai INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, id);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		due_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, created_at);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		persistent INTEGER NOT NULL,
		sound INTEGER NOT NULL DEFAULT 0,
		due_at INTEGER,
		delivered INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(due_at) WHERE delivered = 0 AND due_at IS NOT NULL;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// AppendChatMessage persists one transcript entry for a user.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, userID string, msg domain.Message) error {
	query := `INSERT INTO chat_messages (user_id, content, is_ai, created_at) VALUES (?, ?, ?, ?)`
	return shared.WithBusyRetry(func() error {
		if _, err := s.db.ExecContext(ctx, query, userID, msg.Content, boolToInt(!msg.IsUser), time.Now().Unix()); err != nil {
			return fmt.Errorf("append chat message: %w", err)
		}
		return nil
	})
}

// GetChatHistory returns the user's transcript in append order.
func (s *SQLiteStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	// Select the newest entries, then reverse into append order.
	query := `
		SELECT content, is_ai FROM chat_messages
		WHERE user_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer closeRows(rows, "chat history")

	var newestFirst []domain.Message
	for rows.Next() {
		var msg domain.Message
		var isAI int
		if err := rows.Scan(&msg.Content, &isAI); err != nil {
			return nil, fmt.Errorf("scan chat message row: %w", err)
		}
		msg.IsUser = isAI == 0
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}

	messages := make([]domain.Message, len(newestFirst))
	for i, msg := range newestFirst {
		messages[len(newestFirst)-1-i] = msg
	}
	return messages, nil
}

// ClearChatHistory removes all stored transcript entries for a user.
func (s *SQLiteStore) ClearChatHistory(ctx context.Context, userID string) error {
	return shared.WithBusyRetry(func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear chat history: %w", err)
		}
		return nil
	})
}

// SaveTask mirrors a backend-created task for local listing.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *domain.Task) error {
	query := `
	INSERT INTO tasks (id, user_id, title, description, due_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		due_at = excluded.due_at`

	var dueAt interface{}
	if task.DueAt != nil {
		dueAt = task.DueAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.UserID, task.Title, task.Description, dueAt, task.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// ListTasks returns the user's tasks, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	query := `
		SELECT id, user_id, title, description, due_at, created_at
		FROM tasks WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer closeRows(rows, "tasks")

	var tasks []domain.Task
	for rows.Next() {
		var task domain.Task
		var description sql.NullString
		var dueAt sql.NullInt64
		var createdAt int64

		if err := rows.Scan(&task.ID, &task.UserID, &task.Title, &description, &dueAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}

		task.Description = description.String
		if dueAt.Valid {
			t := time.Unix(dueAt.Int64, 0)
			task.DueAt = &t
		}
		task.CreatedAt = time.Unix(createdAt, 0)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// SaveNotification stores a persistent notification.
func (s *SQLiteStore) SaveNotification(ctx context.Context, n *domain.Notification) error {
	query := `
	INSERT INTO notifications (id, user_id, title, message, type, persistent, sound, due_at, delivered, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`

	var dueAt interface{}
	if n.DueAt != nil {
		dueAt = n.DueAt.Unix()
	}

	return shared.WithBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx, query,
			n.ID, n.UserID, n.Title, n.Message, n.Type,
			boolToInt(n.Persistent), boolToInt(n.Sound), dueAt,
			boolToInt(n.Delivered), n.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("save notification: %w", err)
		}
		return nil
	})
}

// ListNotifications returns the user's stored notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, title, message, type, persistent, sound, due_at, delivered, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer closeRows(rows, "notifications")

	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

// GetDueNotifications returns undelivered notifications whose due time has passed.
func (s *SQLiteStore) GetDueNotifications(ctx context.Context, now time.Time) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, persistent, sound, due_at, delivered, created_at
		FROM notifications WHERE delivered = 0 AND due_at IS NOT NULL AND due_at <= ?`

	rows, err := s.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("query due notifications: %w", err)
	}
	defer closeRows(rows, "due notifications")

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due notifications: %w", err)
	}

	return notifications, nil
}

// MarkNotificationDelivered flags a notification as delivered.
func (s *SQLiteStore) MarkNotificationDelivered(ctx context.Context, id string) error {
	return shared.WithBusyRetry(func() error {
		if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark notification delivered: %w", err)
		}
		return nil
	})
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func scanNotification(rows *sql.Rows) (*domain.Notification, error) {
	var n domain.Notification
	var persistent, sound, delivered int
	var dueAt sql.NullInt64
	var createdAt int64

	if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
		&persistent, &sound, &dueAt, &delivered, &createdAt); err != nil {
		return nil, fmt.Errorf("scan notification row: %w", err)
	}

	n.Persistent = persistent != 0
	n.Sound = sound != 0
	n.Delivered = delivered != 0
	if dueAt.Valid {
		t := time.Unix(dueAt.Int64, 0)
		n.DueAt = &t
	}
	n.CreatedAt = time.Unix(createdAt, 0)
	return &n, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
