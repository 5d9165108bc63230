package assistant

import (
	"fmt"

	"github.com/bryancris/tasqi-sub000/internal/domain"
	"github.com/bryancris/tasqi-sub000/internal/intent"
)

// BuildTimerFallback synthesizes the result the backend would have
// returned for a timer request. It is used when the backend is
// unreachable so the user still gets a working local timer.
func BuildTimerFallback(duration int, rawUnit string) *domain.ProcessResult {
	unit := intent.NormalizeUnit(rawUnit)

	var ms int64
	switch unit {
	case "sec":
		ms = int64(duration) * 1000
	case "min":
		ms = int64(duration) * 60000
	case "hour":
		ms = int64(duration) * 3600000
	}

	return &domain.ProcessResult{
		Response: fmt.Sprintf("I've set a %d %s timer for you.", duration, spokenUnit(unit)),
		Timer: &domain.TimerOutcome{
			Action:     domain.TimerCreated,
			Label:      timerLabel(duration, unit),
			Duration:   duration,
			Unit:       unit,
			DurationMs: ms,
		},
	}
}

// spokenUnit expands the normalized unit for the reply sentence, always
// singular ("I've set a 5 minute timer for you.").
func spokenUnit(unit string) string {
	switch unit {
	case "sec":
		return "second"
	case "min":
		return "minute"
	case "hour":
		return "hour"
	}
	return unit
}

// timerLabel is the short display label, pluralized ("5 mins").
func timerLabel(duration int, unit string) string {
	if duration == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", duration, unit)
}
