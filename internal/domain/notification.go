package domain

import "time"

// Notification is a user-facing notification. Non-persistent notifications
// are pushed to connected clients and forgotten; persistent ones are stored
// so they survive reconnects and can be re-delivered by the sweeper.
type Notification struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Type       string     `json:"type"` // "info", "success", "error"
	Persistent bool       `json:"persistent"`
	Sound      bool       `json:"sound,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	Delivered  bool       `json:"delivered"`
	CreatedAt  time.Time  `json:"created_at"`
}
