// Package intent classifies raw user text into a tentative intent.
//
// Classification is advisory, not exclusive: timer classification wins
// when text matches both the timer phrase and the task heuristics, and
// the orchestrator absorbs task false positives by falling back to the
// general chat path. High recall matters more than precision here.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the classified intent variant.
type Kind int

const (
	// KindNone means the text is ordinary conversation.
	KindNone Kind = iota
	// KindTimer means the text matches the fixed timer phrase.
	KindTimer
	// KindTask means the text looks like it describes a task.
	KindTask
)

// Intent is the classification result. Duration and Unit are populated
// only for KindTimer; Unit is normalized to "sec", "min" or "hour".
type Intent struct {
	Kind     Kind
	Duration int
	Unit     string
	// RawUnit is the unit exactly as typed, used for user-facing labels.
	RawUnit string
}

var timerPattern = regexp.MustCompile(`(?i)set a (\d+)\s*(min|minute|hour|second|sec)s?\s*timer`)

// Explicit task-creation commands and softer task-ish keywords. The list is
// intentionally permissive; a miss just means the message rides the chat
// path, a false hit falls back to chat when the task backend declines.
var taskKeywords = []string{
	"create task", "add task", "schedule task", "remind", "set a task",
	"make a task", "need to", "have to", "should", "must", "go to",
	"pick up", "buy", "attend", "call", "meet", "check",
	"monday", "tuesday", "wednesday", "thursday", "friday",
	"saturday", "sunday", "today", "tomorrow", "tonight",
}

var imperativeVerbPattern = regexp.MustCompile(`(?i)\b(go|get|buy|pick|call|email|visit|attend|clean|fix|write|read|watch)\b`)

const shortImperativeMaxLen = 60

// Classify returns the tentative intent for one line of user text.
// Timer wins over task when both match, because the orchestrator tries
// timers first for messages shaped like the timer phrase.
func Classify(text string) Intent {
	if d, unit, raw, ok := matchTimer(text); ok {
		return Intent{Kind: KindTimer, Duration: d, Unit: unit, RawUnit: raw}
	}
	if looksLikeTask(text) {
		return Intent{Kind: KindTask}
	}
	return Intent{Kind: KindNone}
}

func matchTimer(text string) (duration int, unit, rawUnit string, ok bool) {
	m := timerPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", "", false
	}
	d := 0
	for _, c := range m[1] {
		d = d*10 + int(c-'0')
	}
	raw := strings.ToLower(m[2])
	return d, NormalizeUnit(raw), raw, true
}

// NormalizeUnit maps any accepted unit spelling to one of sec, min, hour.
func NormalizeUnit(unit string) string {
	switch {
	case strings.HasPrefix(unit, "sec"):
		return "sec"
	case strings.HasPrefix(unit, "min"):
		return "min"
	case strings.HasPrefix(unit, "hour"):
		return "hour"
	default:
		return unit
	}
}

func looksLikeTask(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range taskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	// Short imperative-looking sentences are probably tasks.
	return len(text) < shortImperativeMaxLen && imperativeVerbPattern.MatchString(text)
}
