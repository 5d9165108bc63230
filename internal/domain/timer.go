package domain

import "time"

// TimerAction identifies what happened to a timer.
type TimerAction string

const (
	// TimerCreated indicates a new timer was started.
	TimerCreated TimerAction = "created"
	// TimerCompleted indicates a timer ran to completion.
	TimerCompleted TimerAction = "completed"
	// TimerCancelled indicates a timer was cancelled before completion.
	TimerCancelled TimerAction = "cancelled"
)

// TimerOutcome describes a timer event carried on a ProcessResult or
// synthesized by the client-side fallback.
type TimerOutcome struct {
	Action     TimerAction `json:"action"`
	Label      string      `json:"label"`
	Duration   int         `json:"duration,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	DurationMs int64       `json:"milliseconds"`
}

// ActiveTimer is a running timer owned by the scheduler. The expiry
// callback and cancellation are managed exclusively by the scheduler for
// the timer's lifetime.
type ActiveTimer struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	ExpiresAt time.Time `json:"expires_at"`
}
