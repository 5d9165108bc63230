package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryancris/tasqi-sub000/internal/assistant"
	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/identity"
	"github.com/bryancris/tasqi-sub000/internal/notify"
	"github.com/bryancris/tasqi-sub000/internal/refresh"
	"github.com/bryancris/tasqi-sub000/internal/sched"
)

type stubBackend struct {
	reply string
}

func (s *stubBackend) ProcessMessage(context.Context, string, string) (*domain.ProcessResult, error) {
	return &domain.ProcessResult{Response: s.reply}, nil
}

func (s *stubBackend) ProcessTask(context.Context, string, string) (*domain.TaskResult, error) {
	return &domain.TaskResult{Success: false}, nil
}

type stubRepo struct{}

func (stubRepo) GetUser(context.Context, string) (*domain.User, error)          { return nil, nil }
func (stubRepo) UpsertUser(context.Context, *domain.User) error                 { return nil }
func (stubRepo) UpdateLastSeen(context.Context, string, time.Time) error        { return nil }
func (stubRepo) AppendChatMessage(context.Context, string, domain.Message) error { return nil }
func (stubRepo) GetChatHistory(context.Context, string, int) ([]domain.Message, error) {
	return nil, nil
}
func (stubRepo) ClearChatHistory(context.Context, string) error { return nil }
func (stubRepo) SaveTask(context.Context, *domain.Task) error   { return nil }
func (stubRepo) ListTasks(context.Context, string) ([]domain.Task, error) {
	return []domain.Task{{ID: "t-1", Title: "water the plants"}}, nil
}
func (stubRepo) SaveNotification(context.Context, *domain.Notification) error { return nil }
func (stubRepo) ListNotifications(context.Context, string, int) ([]domain.Notification, error) {
	return nil, nil
}
func (stubRepo) GetDueNotifications(context.Context, time.Time) ([]*domain.Notification, error) {
	return nil, nil
}
func (stubRepo) MarkNotificationDelivered(context.Context, string) error { return nil }
func (stubRepo) Ping(context.Context) error                              { return nil }
func (stubRepo) Close() error                                            { return nil }

func newTestHandler(t *testing.T, limiter *RateLimiter) (*Handler, *sched.Scheduler) {
	t.Helper()

	cache := refresh.NewCache()
	coord := refresh.NewCoordinator(cache, nil)
	t.Cleanup(coord.Stop)

	center := notify.NewCenter(nil, nil)
	t.Cleanup(center.Close)

	scheduler := sched.New(center, notify.Chime{Center: center}, coord, nil)
	t.Cleanup(scheduler.Stop)

	sessions := assistant.NewManager(&stubBackend{reply: "hello back"}, scheduler, coord, center, stubRepo{}, nil)
	return NewHandler(sessions, scheduler, cache, stubRepo{}, limiter, 0, nil), scheduler
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := identity.ContextWithUser(req.Context(), "anon_0123456789abcdef0123456789abcdef", "user-0123")
	return req.WithContext(ctx)
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHandleChatRequiresIdentity(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	r := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandleChatReturnsReply(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/chat", `{"message":"how is it going"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var res assistant.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Reply != "hello back" {
		t.Errorf("reply = %q, want stub reply", res.Reply)
	}
}

func TestHandleChatRejectsBadBody(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/chat", `{not json`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	h, _ := newTestHandler(t, NewRateLimiter(1, time.Minute))
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/chat", `{"message":"one"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/chat", `{"message":"two"}`))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
}

func TestHandleChatHistoryTracksSubmissions(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/chat", `{"message":"remember this"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/chat/history", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", w.Code)
	}

	var got struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("history has %d messages, want 2: %+v", len(got.Messages), got.Messages)
	}
	if got.Messages[0].Content != "remember this" || !got.Messages[0].IsUser {
		t.Errorf("first message = %+v", got.Messages[0])
	}
}

func TestHandleListTasksFillsCache(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/tasks", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got struct {
		Tasks []domain.Task `json:"tasks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "t-1" {
		t.Errorf("tasks = %+v, want the stub task", got.Tasks)
	}
}

func TestHandleTimersListAndCancel(t *testing.T) {
	h, scheduler := newTestHandler(t, nil)
	r := newRouter(h)

	userID := "anon_0123456789abcdef0123456789abcdef"
	scheduler.HandleOutcome(userID, domain.TimerOutcome{
		Action: domain.TimerCreated, Label: "10 mins", DurationMs: 600000,
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/timers", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}

	var got struct {
		Timers []domain.ActiveTimer `json:"timers"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Timers) != 1 {
		t.Fatalf("timers = %d, want 1", len(got.Timers))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/timers/"+got.Timers[0].ID+"/cancel", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", w.Code)
	}

	if active := scheduler.Active(userID); len(active) != 0 {
		t.Errorf("active after cancel = %d, want 0", len(active))
	}
}
