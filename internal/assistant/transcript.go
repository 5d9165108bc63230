package assistant

import (
	"sync"

	"github.com/bryancris/tasqi-sub000/internal/domain"
)

// Transcript is one user's append-only chat history for the current
// session. At most one trailing loading placeholder exists at any time;
// it is replaced in place when the submission resolves.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// AddUser appends a user-authored message.
func (t *Transcript) AddUser(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, domain.Message{Content: content, IsUser: true})
}

// AddAssistant appends a system-authored message. If the transcript ends
// with a loading placeholder the new message replaces it, so exactly one
// system message lands per submission.
func (t *Transcript) AddAssistant(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.messages); n > 0 && t.messages[n-1].IsPlaceholder() {
		t.messages[n-1] = domain.Message{Content: content, IsUser: false}
		return
	}
	t.messages = append(t.messages, domain.Message{Content: content, IsUser: false})
}

// AddPlaceholder appends the transient loading entry. A second placeholder
// is never stacked on top of an existing one.
func (t *Transcript) AddPlaceholder() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.messages); n > 0 && t.messages[n-1].IsPlaceholder() {
		return
	}
	t.messages = append(t.messages, domain.Message{Content: domain.PlaceholderContent, IsUser: false})
}

// RemovePlaceholder drops a trailing loading entry if one exists.
func (t *Transcript) RemovePlaceholder() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.messages); n > 0 && t.messages[n-1].IsPlaceholder() {
		t.messages = t.messages[:n-1]
	}
}

// Messages returns a copy of the transcript in append order.
func (t *Transcript) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of entries, placeholder included.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Reset discards the whole transcript.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// Seed replaces the transcript contents, used when restoring persisted
// history at session start.
func (t *Transcript) Seed(msgs []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = make([]domain.Message, len(msgs))
	copy(t.messages, msgs)
}
