package assistant

import (
	"testing"

	"github.com/bryancris/tasqi-sub000/internal/domain"
)

func TestBuildTimerFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		duration  int
		unit      string
		wantMs    int64
		wantReply string
		wantLabel string
	}{
		{"five minutes", 5, "min", 300000, "I've set a 5 minute timer for you.", "5 mins"},
		{"two minutes spelled out", 2, "minute", 120000, "I've set a 2 minute timer for you.", "2 mins"},
		{"thirty seconds", 30, "sec", 30000, "I've set a 30 second timer for you.", "30 secs"},
		{"seconds spelled out", 45, "second", 45000, "I've set a 45 second timer for you.", "45 secs"},
		{"one hour", 1, "hour", 3600000, "I've set a 1 hour timer for you.", "1 hour"},
		{"two hours", 2, "hour", 7200000, "I've set a 2 hour timer for you.", "2 hours"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := BuildTimerFallback(tt.duration, tt.unit)
			if res.Response != tt.wantReply {
				t.Errorf("reply = %q, want %q", res.Response, tt.wantReply)
			}
			if res.Timer == nil {
				t.Fatal("no timer outcome")
			}
			if res.Timer.Action != domain.TimerCreated {
				t.Errorf("action = %q, want created", res.Timer.Action)
			}
			if res.Timer.DurationMs != tt.wantMs {
				t.Errorf("milliseconds = %d, want %d", res.Timer.DurationMs, tt.wantMs)
			}
			if res.Timer.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", res.Timer.Label, tt.wantLabel)
			}
			if res.TaskCreated || res.Task != nil {
				t.Error("fallback result carries a task")
			}
		})
	}
}
