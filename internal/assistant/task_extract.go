package assistant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bryancris/tasqi-sub000/internal/domain"
)

// Confirmation phrases the chat backend uses when it silently created a
// task as a side effect of an ordinary reply. Matching is case-insensitive.
var taskConfirmationPhrases = []string{
	"created a task",
	"added a task",
	"scheduled a task",
	"created the task",
	"added the task",
	"scheduled the task",
	"task has been created",
	"task has been added",
	"i've created",
	"i've added",
	"i have created",
	"i have added",
}

// mentionsTaskCreation reports whether a chat reply claims a task was
// created even though the structured payload carried none.
func mentionsTaskCreation(reply string) bool {
	lower := strings.ToLower(reply)
	for _, p := range taskConfirmationPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// TaskExtractor recovers task payloads the chat path dropped. When a reply
// claims task creation but carries no task, it re-submits the original
// message to the dedicated task endpoint to obtain the structured record.
type TaskExtractor struct {
	backend Backend
	logger  *slog.Logger
}

// NewTaskExtractor creates an extractor backed by the given client.
func NewTaskExtractor(backend Backend, logger *slog.Logger) *TaskExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskExtractor{backend: backend, logger: logger}
}

// TryExtract attempts recovery for a chat reply with no structured task.
// It returns the recovered task, or nil when the reply makes no creation
// claim or when the re-submission fails. Failures are logged only; the
// original chat reply already stands and must not be disturbed.
func (e *TaskExtractor) TryExtract(ctx context.Context, message, reply, userID string) *domain.Task {
	if !mentionsTaskCreation(reply) {
		return nil
	}

	res, err := e.backend.ProcessTask(ctx, message, userID)
	if err != nil {
		e.logger.Warn("task recovery failed", "error", err, "user_id", userID)
		return nil
	}
	if !res.Success || res.Task == nil {
		return nil
	}

	e.logger.Info("recovered task missing from chat payload",
		"task_id", res.Task.ID, "user_id", userID)
	return res.Task
}
