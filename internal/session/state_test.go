package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joacortez/kai-go/internal/gcal"
)

func TestNewState_GeneratesIDWhenEmpty(t *testing.T) {
	s := NewState("")
	require.NotEmpty(t, s.SessionID())

	fixed := NewState("kai-main")
	require.Equal(t, "kai-main", fixed.SessionID())
}

func TestRecordEvents_MergesByID(t *testing.T) {
	s := NewState("test")

	s.RecordEvents([]gcal.Event{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
	})
	s.RecordEvents([]gcal.Event{
		{ID: "a", Title: "First updated"},
		{ID: "", Title: "ignored, no id"},
	})

	events := s.Snapshot()
	require.Len(t, events, 2)
	require.Equal(t, "First updated", events[0].Title)
	require.Equal(t, "Second", events[1].Title)
}

func TestForget(t *testing.T) {
	s := NewState("test")
	s.RecordEvents([]gcal.Event{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}})

	s.Forget("a")
	events := s.Snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "b", events[0].ID)

	// Forgetting an unknown id is a no-op.
	s.Forget("missing")
	require.Len(t, s.Snapshot(), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewState("test")
	s.RecordEvents([]gcal.Event{{ID: "a", Title: "A"}})

	snap := s.Snapshot()
	snap[0].Title = "mutated"
	require.Equal(t, "A", s.Snapshot()[0].Title)
}

func TestRestore(t *testing.T) {
	s := NewState("test")
	s.RecordEvents([]gcal.Event{{ID: "old", Title: "Old"}})

	s.Restore([]gcal.Event{{ID: "new", Title: "New"}})
	events := s.Snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "new", events[0].ID)
}

func TestPromptContext(t *testing.T) {
	s := NewState("test")
	require.Empty(t, s.PromptContext())

	start := time.Date(2025, time.June, 20, 10, 0, 0, 0, time.UTC)
	s.RecordEvents([]gcal.Event{{ID: "a", Title: "Team sync", Start: start, End: start.Add(time.Hour)}})

	ctx := s.PromptContext()
	require.Contains(t, ctx, "KNOWN CALENDAR EVENTS")
	require.Contains(t, ctx, "Team sync")
	require.Contains(t, ctx, "2025-06-20T10:00:00Z")
}
