// Package domain contains core domain types for the TASQI assistant.
package domain

// PlaceholderContent is the content of the transient loading message that
// sits at the end of the transcript while a submission is in flight.
const PlaceholderContent = "..."

// Message is a single transcript entry. Messages are immutable once
// appended; the transcript is append-only except for the removal of one
// trailing loading placeholder per submission.
type Message struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}

// IsPlaceholder reports whether the message is the transient loading entry.
func (m Message) IsPlaceholder() bool {
	return !m.IsUser && m.Content == PlaceholderContent
}

// ProcessResult is the outcome of one remote "process message" invocation,
// or a locally synthesized fallback equivalent.
type ProcessResult struct {
	Response    string        `json:"response,omitempty"`
	Timer       *TimerOutcome `json:"timer,omitempty"`
	TaskCreated bool          `json:"taskCreated,omitempty"`
	Task        *Task         `json:"task,omitempty"`
}

// Normalize enforces the boundary invariant that taskCreated may only be
// true when a task payload is present. Violating payloads are treated as
// if no task was created.
func (r *ProcessResult) Normalize() {
	if r.TaskCreated && r.Task == nil {
		r.TaskCreated = false
	}
}

// TaskResult is the outcome of one remote "process task" invocation.
type TaskResult struct {
	Success  bool   `json:"success"`
	Task     *Task  `json:"task,omitempty"`
	Response string `json:"response,omitempty"`
}
