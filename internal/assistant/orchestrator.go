// Package assistant implements the conversational pipeline that turns one
// line of user text into a task, a timer or a chat reply.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bryancris/tasqi-sub000/internal/backend"
	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/intent"
	"github.com/bryancris/tasqi-sub000/internal/refresh"
	"github.com/bryancris/tasqi-sub000/internal/store"
)

// Fixed replies. The wording is part of the conversational contract and
// is matched by tests, so keep it stable.
const (
	signInReply       = "Please sign in to send messages"
	clearedReply      = "Chat history has been cleared."
	networkApology    = "Sorry, I'm having trouble connecting to the server. Please try again in a moment."
	processingApology = "Sorry, I encountered an error processing your message. Please try again later."
	emptyReply        = "I'm sorry, I couldn't process that request."
)

// Refresh schedule for the resources a submission may touch. The trailing
// safety net covers backend side effects the structured payload omitted.
const (
	taskCreatedRefreshDelay  = 500 * time.Millisecond
	safetyTasksDelay         = 1500 * time.Millisecond
	safetyNotificationsDelay = 1800 * time.Millisecond
)

// ErrBusy is returned when a submission arrives while the previous one for
// the same user is still resolving.
var ErrBusy = errors.New("a submission is already in flight")

// Backend is the remote invocation surface the orchestrator depends on.
type Backend interface {
	ProcessMessage(ctx context.Context, content, userID string) (*domain.ProcessResult, error)
	ProcessTask(ctx context.Context, message, userID string) (*domain.TaskResult, error)
}

// TimerHandler receives timer outcomes for scheduling and notification.
// ResetCycle marks the start of one user's resolution cycle; duplicate
// labels are only suppressed within that user's cycle.
type TimerHandler interface {
	ResetCycle(userID string)
	HandleOutcome(userID string, out domain.TimerOutcome)
}

// Refresher schedules debounced cache refreshes.
type Refresher interface {
	Request(key string, delay time.Duration)
}

// NotificationSink shows user-facing notifications.
type NotificationSink interface {
	Show(ctx context.Context, n domain.Notification)
}

// Result is what one submission resolved to. Exactly one of the three
// shapes applies: Task set means a task was created, Timer set means a
// timer outcome was handed to the scheduler, otherwise Reply alone is a
// plain chat answer.
type Result struct {
	Reply       string               `json:"reply"`
	TaskCreated bool                 `json:"taskCreated,omitempty"`
	Task        *domain.Task         `json:"task,omitempty"`
	Timer       *domain.TimerOutcome `json:"timer,omitempty"`
}

// Orchestrator runs the submission pipeline for a single user.
type Orchestrator struct {
	userID     string
	transcript *Transcript
	backend    Backend
	timers     TimerHandler
	refresher  Refresher
	sink       NotificationSink
	extractor  *TaskExtractor
	repo       store.Repository
	logger     *slog.Logger
	inFlight   atomic.Bool
}

// NewOrchestrator wires a pipeline for one user. repo may be nil, in which
// case nothing is persisted. The transcript starts empty; call Restore to
// seed it from stored history.
func NewOrchestrator(userID string, b Backend, timers TimerHandler, refresher Refresher, sink NotificationSink, repo store.Repository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		userID:     userID,
		transcript: NewTranscript(),
		backend:    b,
		timers:     timers,
		refresher:  refresher,
		sink:       sink,
		extractor:  NewTaskExtractor(b, logger),
		repo:       repo,
		logger:     logger.With("user_id", userID),
	}
}

// Transcript exposes the user's session transcript.
func (o *Orchestrator) Transcript() *Transcript {
	return o.transcript
}

// Restore seeds the transcript from persisted history.
func (o *Orchestrator) Restore(ctx context.Context, limit int) error {
	if o.repo == nil {
		return nil
	}
	msgs, err := o.repo.GetChatHistory(ctx, o.userID, limit)
	if err != nil {
		return err
	}
	o.transcript.Seed(msgs)
	return nil
}

// Submit runs one line of user text through the pipeline. Blank input is a
// no-op. A second Submit while one is resolving returns ErrBusy.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Result{}, nil
	}

	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.inFlight.Store(false)

	if text == "/clear" {
		return o.clear(ctx)
	}

	if o.userID == "" {
		o.transcript.AddUser(text)
		o.transcript.AddAssistant(signInReply)
		return &Result{Reply: signInReply}, nil
	}

	o.transcript.AddUser(text)
	o.persistMessage(ctx, domain.Message{Content: text, IsUser: true})
	o.timers.ResetCycle(o.userID)
	o.transcript.AddPlaceholder()

	// Backend side effects may outrun the structured payload, so sweep
	// the task and notification caches after every resolution.
	defer func() {
		o.refresher.Request(refresh.KeyTasks, safetyTasksDelay)
		o.refresher.Request(refresh.KeyNotifications, safetyNotificationsDelay)
	}()

	in := intent.Classify(text)

	if in.Kind == intent.KindTask {
		if res, ok := o.tryTaskPath(ctx, text); ok {
			return res, nil
		}
		// The task backend declined; the message rides the chat path.
	}

	if in.Kind == intent.KindTimer {
		return o.timerPath(ctx, text, in), nil
	}

	return o.chatPath(ctx, text), nil
}

func (o *Orchestrator) clear(ctx context.Context) (*Result, error) {
	o.transcript.Reset()
	if o.repo != nil && o.userID != "" {
		if err := o.repo.ClearChatHistory(ctx, o.userID); err != nil {
			o.logger.Error("failed to clear chat history", "error", err)
		}
	}
	o.transcript.AddAssistant(clearedReply)
	return &Result{Reply: clearedReply}, nil
}

// tryTaskPath submits task-shaped text to the dedicated task endpoint.
// ok=false means the endpoint declined or failed and the chat path should
// take over; nothing user-visible has happened yet in that case.
func (o *Orchestrator) tryTaskPath(ctx context.Context, text string) (*Result, bool) {
	res, err := o.backend.ProcessTask(ctx, text, o.userID)
	if err != nil {
		o.logger.Warn("task path failed, falling through to chat", "error", err)
		return nil, false
	}
	if !res.Success || res.Task == nil {
		return nil, false
	}

	reply := res.Response
	if reply == "" {
		reply = "I've created the task \"" + res.Task.Title + "\" for you."
	}
	o.resolve(ctx, reply)
	o.recordTask(ctx, res.Task)
	o.refresher.Request(refresh.KeyTasks, taskCreatedRefreshDelay)

	return &Result{Reply: reply, TaskCreated: true, Task: res.Task}, true
}

// timerPath resolves timer-shaped text. A network failure synthesizes a
// local timer so the user is not left without one; every other failure is
// reported like a chat error.
func (o *Orchestrator) timerPath(ctx context.Context, text string, in intent.Intent) *Result {
	res, err := o.backend.ProcessMessage(ctx, text, o.userID)
	if err != nil {
		if backend.KindOf(err) == backend.KindNetwork {
			o.logger.Info("backend unreachable, building local timer",
				"duration", in.Duration, "unit", in.Unit)
			res = BuildTimerFallback(in.Duration, in.RawUnit)
		} else {
			return o.failWith(ctx, err)
		}
	}
	return o.finishProcessed(ctx, text, res)
}

// chatPath resolves ordinary conversation.
func (o *Orchestrator) chatPath(ctx context.Context, text string) *Result {
	res, err := o.backend.ProcessMessage(ctx, text, o.userID)
	if err != nil {
		return o.failWith(ctx, err)
	}
	return o.finishProcessed(ctx, text, res)
}

// finishProcessed turns a ProcessResult into the user-visible resolution:
// reply in the transcript, timer handed to the scheduler, task recorded.
func (o *Orchestrator) finishProcessed(ctx context.Context, text string, res *domain.ProcessResult) *Result {
	reply := res.Response
	if reply == "" {
		reply = emptyReply
	}
	o.resolve(ctx, reply)

	out := &Result{Reply: reply}

	if res.TaskCreated && res.Task != nil {
		o.recordTask(ctx, res.Task)
		o.refresher.Request(refresh.KeyTasks, taskCreatedRefreshDelay)
		out.TaskCreated = true
		out.Task = res.Task
	} else if task := o.extractor.TryExtract(ctx, text, reply, o.userID); task != nil {
		o.recordTask(ctx, task)
		o.refresher.Request(refresh.KeyTasks, taskCreatedRefreshDelay)
		out.TaskCreated = true
		out.Task = task
	}

	if res.Timer != nil {
		o.timers.HandleOutcome(o.userID, *res.Timer)
		out.Timer = res.Timer
	}

	return out
}

// failWith replaces the placeholder with the apology matching the failure
// kind. The submission still resolves to exactly one system message.
func (o *Orchestrator) failWith(ctx context.Context, err error) *Result {
	reply := processingApology
	switch backend.KindOf(err) {
	case backend.KindNetwork:
		reply = networkApology
	case backend.KindAuthRequired:
		reply = signInReply
	}
	o.logger.Error("submission failed", "error", err, "kind", backend.KindOf(err).String())
	o.resolve(ctx, reply)
	return &Result{Reply: reply}
}

// resolve replaces the trailing placeholder with the final reply and
// persists it.
func (o *Orchestrator) resolve(ctx context.Context, reply string) {
	o.transcript.AddAssistant(reply)
	o.persistMessage(ctx, domain.Message{Content: reply, IsUser: false})
}

func (o *Orchestrator) persistMessage(ctx context.Context, msg domain.Message) {
	if o.repo == nil {
		return
	}
	if err := o.repo.AppendChatMessage(ctx, o.userID, msg); err != nil {
		o.logger.Error("failed to persist chat message", "error", err)
	}
}

// recordTask mirrors the task locally, shows the creation toast, and files
// a due reminder for the sweeper when the task carries a due time.
func (o *Orchestrator) recordTask(ctx context.Context, task *domain.Task) {
	task.UserID = o.userID
	if o.repo != nil {
		if err := o.repo.SaveTask(ctx, task); err != nil {
			o.logger.Error("failed to mirror task", "error", err, "task_id", task.ID)
		}
	}

	o.sink.Show(ctx, domain.Notification{
		UserID:  o.userID,
		Title:   "Task Created",
		Message: task.Title,
		Type:    "success",
	})

	if task.DueAt != nil && o.repo != nil {
		reminder := &domain.Notification{
			ID:         uuid.NewString(),
			UserID:     o.userID,
			Title:      "Task Reminder",
			Message:    task.Title + " is due",
			Type:       "info",
			Persistent: true,
			DueAt:      task.DueAt,
			CreatedAt:  time.Now(),
		}
		if err := o.repo.SaveNotification(ctx, reminder); err != nil {
			o.logger.Error("failed to file task reminder", "error", err, "task_id", task.ID)
		}
	}
}
