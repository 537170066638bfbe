package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joacortez/kai-go/internal/gcal"
)

// State is the per-session context the coordinator echoes into its system
// prompt: the events it has seen so far. It is advisory only; the calendar
// backend remains the source of truth. A State lives for one session and is
// discarded when the session ends.
type State struct {
	sessionID string

	mu     sync.Mutex
	events []gcal.Event
}

// NewState creates session state. When id is empty a random session id is
// generated.
func NewState(id string) *State {
	if id == "" {
		id = uuid.NewString()
	}
	return &State{sessionID: id}
}

// SessionID returns the session identifier.
func (s *State) SessionID() string {
	return s.sessionID
}

// RecordEvents merges events into the known set, keyed by event id. This is
// the only mutation point; the toolkit calls it after create, update and list
// operations.
func (s *State) RecordEvents(events []gcal.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		replaced := false
		for i := range s.events {
			if s.events[i].ID == ev.ID {
				s.events[i] = ev
				replaced = true
				break
			}
		}
		if !replaced {
			s.events = append(s.events, ev)
		}
	}
}

// Forget drops an event from the known set, e.g. after a delete.
func (s *State) Forget(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the known events.
func (s *State) Snapshot() []gcal.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]gcal.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Restore replaces the known set, used when resuming a persisted session.
func (s *State) Restore(events []gcal.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make([]gcal.Event, len(events))
	copy(s.events, events)
}

// PromptContext renders the known events as a block for the coordinator's
// system prompt. Returns "" when nothing is known yet.
func (s *State) PromptContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("KNOWN CALENDAR EVENTS (may be stale; the calendar is authoritative):\n")
	for _, ev := range s.events {
		fmt.Fprintf(&b, "- %s [%s] %s - %s\n",
			ev.Title, ev.ID,
			ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339))
	}
	return b.String()
}
