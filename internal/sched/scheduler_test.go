package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
)

type recordingSink struct {
	mu    sync.Mutex
	shown []domain.Notification
}

func (r *recordingSink) Show(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
}

func (r *recordingSink) byTitle(title string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.shown {
		if n.Title == title {
			out = append(out, n)
		}
	}
	return out
}

type recordingSound struct {
	mu    sync.Mutex
	plays int
}

func (r *recordingSound) PlayNotificationSound(string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays++
	return true
}

func (r *recordingSound) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plays
}

type recordingRefresher struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingRefresher) Request(key string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

func newTestScheduler() (*Scheduler, *recordingSink, *recordingSound, *recordingRefresher) {
	sink := &recordingSink{}
	sound := &recordingSound{}
	ref := &recordingRefresher{}
	return New(sink, sound, ref, nil), sink, sound, ref
}

func created(label string, ms int64) domain.TimerOutcome {
	return domain.TimerOutcome{Action: domain.TimerCreated, Label: label, DurationMs: ms}
}

func TestCreatedOutcomeSchedulesTimerAndNotifies(t *testing.T) {
	t.Parallel()

	s, sink, _, _ := newTestScheduler()
	defer s.Stop()

	s.HandleOutcome("user-1", created("5 mins", 300000))

	active := s.Active("user-1")
	if len(active) != 1 {
		t.Fatalf("active timers = %d, want 1", len(active))
	}
	if got := sink.byTitle("Timer Started"); len(got) != 1 {
		t.Fatalf("started notifications = %d, want 1", len(got))
	}
	if until := time.Until(active[0].ExpiresAt); until < 4*time.Minute || until > 5*time.Minute {
		t.Errorf("expiry %v away, want about 5 minutes", until)
	}
}

func TestDuplicateLabelWithinCycleNotifiesOnce(t *testing.T) {
	t.Parallel()

	s, sink, _, _ := newTestScheduler()
	defer s.Stop()

	s.HandleOutcome("user-1", created("5 mins", 300000))
	s.HandleOutcome("user-1", created("5 mins", 300000))

	if got := sink.byTitle("Timer Started"); len(got) != 1 {
		t.Fatalf("started notifications = %d, want 1", len(got))
	}

	// A new resolution may reuse the label.
	s.ResetCycle("user-1")
	s.HandleOutcome("user-1", created("5 mins", 300000))
	if got := sink.byTitle("Timer Started"); len(got) != 2 {
		t.Fatalf("started notifications after reset = %d, want 2", len(got))
	}
}

func TestDedupeStateIsScopedToUser(t *testing.T) {
	t.Parallel()

	s, sink, _, _ := newTestScheduler()
	defer s.Stop()

	// Two users asking for the same label in interleaved resolutions
	// each get their own timer and notification.
	s.ResetCycle("user-b")
	s.HandleOutcome("user-b", created("5 mins", 300000))
	s.ResetCycle("user-a")
	s.HandleOutcome("user-a", created("5 mins", 300000))

	if got := len(s.Active("user-a")); got != 1 {
		t.Errorf("user-a active timers = %d, want 1", got)
	}
	if got := len(s.Active("user-b")); got != 1 {
		t.Errorf("user-b active timers = %d, want 1", got)
	}
	if got := sink.byTitle("Timer Started"); len(got) != 2 {
		t.Fatalf("started notifications = %d, want 2", len(got))
	}

	// One user's new cycle leaves the other's in-flight dedupe intact.
	s.ResetCycle("user-b")
	s.HandleOutcome("user-a", created("5 mins", 300000))
	if got := len(s.Active("user-a")); got != 1 {
		t.Errorf("user-a active timers after duplicate = %d, want 1", got)
	}
	if got := sink.byTitle("Timer Started"); len(got) != 2 {
		t.Errorf("started notifications after duplicate = %d, want 2", len(got))
	}
}

func TestZeroDurationCreatedIsIgnored(t *testing.T) {
	t.Parallel()

	s, sink, _, _ := newTestScheduler()
	defer s.Stop()

	s.HandleOutcome("user-1", created("broken", 0))

	if len(s.Active("user-1")) != 0 {
		t.Error("zero-duration timer was scheduled")
	}
	if got := sink.byTitle("Timer Started"); len(got) != 0 {
		t.Errorf("started notifications = %d, want 0", len(got))
	}
}

func TestCompletionFiresPersistentNotificationAndSound(t *testing.T) {
	t.Parallel()

	s, sink, sound, _ := newTestScheduler()
	defer s.Stop()

	s.HandleOutcome("user-1", created("50 ms", 50))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.byTitle("Timer Complete")) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	complete := sink.byTitle("Timer Complete")
	if len(complete) != 1 {
		t.Fatalf("complete notifications = %d, want 1", len(complete))
	}
	if !complete[0].Persistent {
		t.Error("completion notification is not persistent")
	}
	if sound.count() != 1 {
		t.Errorf("sound plays = %d, want 1", sound.count())
	}
	if len(s.Active("user-1")) != 0 {
		t.Error("completed timer still in active map")
	}
}

func TestStopSuppressesCompletionSideEffects(t *testing.T) {
	t.Parallel()

	s, sink, sound, _ := newTestScheduler()

	s.HandleOutcome("user-1", created("20 ms", 20))
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := sink.byTitle("Timer Complete"); len(got) != 0 {
		t.Errorf("complete notifications after Stop = %d, want 0", len(got))
	}
	if sound.count() != 0 {
		t.Errorf("sound plays after Stop = %d, want 0", sound.count())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	s, sink, _, _ := newTestScheduler()
	defer s.Stop()

	// Cancelling an unknown ID still notifies.
	s.Cancel("user-1", "no-such-timer")
	if got := sink.byTitle("Timer Cancelled"); len(got) != 1 {
		t.Fatalf("cancelled notifications = %d, want 1", len(got))
	}

	s.HandleOutcome("user-1", created("10 mins", 600000))
	active := s.Active("user-1")
	if len(active) != 1 {
		t.Fatalf("active timers = %d, want 1", len(active))
	}

	s.Cancel("user-1", active[0].ID)
	if len(s.Active("user-1")) != 0 {
		t.Error("cancelled timer still in active map")
	}

	// A cancelled outcome from the backend needs no prior created entry.
	s.HandleOutcome("user-1", domain.TimerOutcome{Action: domain.TimerCancelled, Label: "tea"})
	if got := sink.byTitle("Timer Cancelled"); len(got) != 3 {
		t.Fatalf("cancelled notifications = %d, want 3", len(got))
	}
}

func TestActiveIsScopedToUser(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestScheduler()
	defer s.Stop()

	s.HandleOutcome("user-1", created("a", 600000))
	s.HandleOutcome("user-2", created("b", 600000))

	if got := len(s.Active("user-1")); got != 1 {
		t.Errorf("user-1 active = %d, want 1", got)
	}
	if got := len(s.Active("user-2")); got != 1 {
		t.Errorf("user-2 active = %d, want 1", got)
	}
}
