package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/store"
)

// StartReminderSweeper runs a background goroutine that periodically finds
// persistent notifications whose due time has passed and pushes them to
// connected clients. Delivery is recorded so a reminder fires once even
// across restarts.
func StartReminderSweeper(ctx context.Context, repo store.Repository, center *Center, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Reminder sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepDueReminders(ctx, repo, center)
			case <-ctx.Done():
				slog.Info("Reminder sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepDueReminders(ctx context.Context, repo store.Repository, center *Center) {
	due, err := repo.GetDueNotifications(ctx, time.Now())
	if err != nil {
		slog.Error("Reminder sweeper failed to query due notifications", "error", err)
		return
	}

	if len(due) == 0 {
		return
	}

	slog.Info("Reminder sweeper found due notifications", "count", len(due))

	for _, n := range due {
		center.Push(*n)

		if err := repo.MarkNotificationDelivered(ctx, n.ID); err != nil {
			// Missing the mark means a duplicate push next sweep, which the
			// client-side list view tolerates; log and continue.
			slog.Warn("Reminder sweeper failed to mark notification delivered",
				"notification_id", n.ID,
				"user_id", n.UserID,
				"error", err)
		}
	}
}
