package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joacortez/kai-go/internal/gcal"
	"github.com/joacortez/kai-go/internal/logger"
)

// noEventsSentinel is the user-visible "no results" signal. Internally an
// empty result is always an empty slice; the sentinel is produced here, at
// the tool boundary, and nowhere else.
const noEventsSentinel = "No upcoming events found."

// CalendarBackend is the slice of the calendar client the toolkit needs.
type CalendarBackend interface {
	CreateEvent(ctx context.Context, input gcal.EventInput) (gcal.Event, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]gcal.Event, error)
	UpdateEvent(ctx context.Context, eventID string, patch gcal.EventPatch) (gcal.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// EventRecorder receives events observed by the toolkit so the coordinator's
// session state can track them. Recorded state is advisory; the backend stays
// canonical.
type EventRecorder interface {
	RecordEvents(events []gcal.Event)
	Forget(eventID string)
}

// CommandKind enumerates the calendar capability set.
type CommandKind int

const (
	CommandCreate CommandKind = iota
	CommandList
	CommandUpdate
	CommandDelete
	CommandCurrentDate
)

// Command is one calendar operation with its raw arguments.
type Command struct {
	Kind CommandKind
	Args map[string]any
}

// CalendarToolkit exposes the calendar capability set as agent tools and
// dispatches them against the backend.
type CalendarToolkit struct {
	backend  CalendarBackend
	loc      *time.Location
	recorder EventRecorder
}

// NewCalendarToolkit builds a toolkit for the given backend. timezone is an
// IANA name; an empty or invalid name falls back to the local zone. recorder
// may be nil.
func NewCalendarToolkit(backend CalendarBackend, timezone string, recorder EventRecorder) *CalendarToolkit {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.L.Warn("invalid timezone, falling back to local", "timezone", timezone, "error", err)
		loc = time.Local
	}
	return &CalendarToolkit{backend: backend, loc: loc, recorder: recorder}
}

// Register adds the five calendar tools to a registry.
func (tk *CalendarToolkit) Register(r *Registry) {
	for _, t := range tk.Tools() {
		r.Register(t)
	}
}

// Tools returns the declared capability set.
func (tk *CalendarToolkit) Tools() []Tool {
	return []Tool{
		&calendarTool{
			toolkit: tk,
			kind:    CommandCreate,
			name:    "create_event",
			description: "Creates a new event in the user's Google Calendar. " +
				"Requires a title and the start and end times in ISO-8601 format. " +
				"Returns a success message with the event link, or an error message.",
			schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "The title of the event"},
					"start": {"type": "string", "description": "Event start time, ISO-8601"},
					"end": {"type": "string", "description": "Event end time, ISO-8601"},
					"description": {"type": "string", "description": "Detailed description of the event"},
					"location": {"type": "string", "description": "Where the event takes place"}
				},
				"required": ["title", "start", "end"]
			}`),
		},
		&calendarTool{
			toolkit: tk,
			kind:    CommandList,
			name:    "list_upcoming_events",
			description: "Retrieves upcoming calendar events starting from the current time, " +
				"earliest first. Returns a JSON list of events with their ids, or a message " +
				"when there are none.",
			schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"limit": {"type": "integer", "description": "Maximum number of events to return (default 10)"}
				}
			}`),
		},
		&calendarTool{
			toolkit: tk,
			kind:    CommandUpdate,
			name:    "update_event",
			description: "Updates an existing calendar event. Only the supplied fields change; " +
				"all others keep their current values. List events first if you need the event id.",
			schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string", "description": "The id of the event to update"},
					"title": {"type": "string", "description": "New title"},
					"start": {"type": "string", "description": "New start time, ISO-8601"},
					"end": {"type": "string", "description": "New end time, ISO-8601"},
					"description": {"type": "string", "description": "New description"},
					"location": {"type": "string", "description": "New location"}
				},
				"required": ["event_id"]
			}`),
		},
		&calendarTool{
			toolkit: tk,
			kind:    CommandDelete,
			name:    "delete_event",
			description: "Deletes a calendar event by id. Deleting an id that does not exist " +
				"reports a failure.",
			schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string", "description": "The id of the event to delete"}
				},
				"required": ["event_id"]
			}`),
		},
		&calendarTool{
			toolkit: tk,
			kind:    CommandCurrentDate,
			name:    "get_current_date",
			description: "Returns today's date as structured JSON. Call this first on every " +
				"calendar task, before interpreting any relative date the user mentions.",
			schema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

// calendarTool binds one command kind to the toolkit dispatch.
type calendarTool struct {
	toolkit     *CalendarToolkit
	kind        CommandKind
	name        string
	description string
	schema      json.RawMessage
}

func (t *calendarTool) Name() string                { return t.name }
func (t *calendarTool) Description() string         { return t.description }
func (t *calendarTool) Parameters() json.RawMessage { return t.schema }

func (t *calendarTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.toolkit.Dispatch(ctx, Command{Kind: t.kind, Args: args})
}

// Dispatch executes one command. Backend failures are reported in the result
// string, never as an error: the delegate forwards them to the model as tool
// output.
func (tk *CalendarToolkit) Dispatch(ctx context.Context, cmd Command) (string, error) {
	switch cmd.Kind {
	case CommandCreate:
		return tk.createEvent(ctx, cmd.Args), nil
	case CommandList:
		return tk.listUpcomingEvents(ctx, cmd.Args), nil
	case CommandUpdate:
		return tk.updateEvent(ctx, cmd.Args), nil
	case CommandDelete:
		return tk.deleteEvent(ctx, cmd.Args), nil
	case CommandCurrentDate:
		return tk.currentDate(), nil
	default:
		return "", fmt.Errorf("unknown calendar command: %d", cmd.Kind)
	}
}

func (tk *CalendarToolkit) createEvent(ctx context.Context, args map[string]any) string {
	title, _ := args["title"].(string)
	if title == "" {
		return "Failed to create event: title is required"
	}

	start, err := tk.timestampArg(args, "start")
	if err != nil {
		return fmt.Sprintf("Failed to create event: %v", err)
	}
	end, err := tk.timestampArg(args, "end")
	if err != nil {
		return fmt.Sprintf("Failed to create event: %v", err)
	}

	input := gcal.EventInput{
		Title: title,
		Start: start,
		End:   end,
	}
	if description, ok := args["description"].(string); ok {
		input.Description = description
	}
	if location, ok := args["location"].(string); ok {
		input.Location = location
	}

	event, err := tk.backend.CreateEvent(ctx, input)
	if err != nil {
		logger.L.Warn("create event failed", "category", gcal.CategoryOf(err), "error", err)
		return fmt.Sprintf("Failed to create event: %v", err)
	}

	tk.record(event)
	return fmt.Sprintf("Event created successfully: %s", event.HTMLLink)
}

func (tk *CalendarToolkit) listUpcomingEvents(ctx context.Context, args map[string]any) string {
	limit := 10
	// JSON numbers arrive as float64.
	if raw, ok := args["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	events, err := tk.backend.ListUpcoming(ctx, anchoredNow(tk.loc), limit)
	if err != nil {
		logger.L.Warn("list events failed", "category", gcal.CategoryOf(err), "error", err)
		return fmt.Sprintf("Failed to retrieve events: %v", err)
	}

	if len(events) == 0 {
		return noEventsSentinel
	}

	tk.record(events...)
	formatted, err := json.Marshal(events)
	if err != nil {
		return fmt.Sprintf("Failed to format events: %v", err)
	}
	return string(formatted)
}

func (tk *CalendarToolkit) updateEvent(ctx context.Context, args map[string]any) string {
	eventID, _ := args["event_id"].(string)
	if eventID == "" {
		return "Failed to update event: event_id is required"
	}

	var patch gcal.EventPatch
	if title, ok := args["title"].(string); ok {
		patch.Title = &title
	}
	if description, ok := args["description"].(string); ok {
		patch.Description = &description
	}
	if location, ok := args["location"].(string); ok {
		patch.Location = &location
	}
	if _, ok := args["start"]; ok {
		start, err := tk.timestampArg(args, "start")
		if err != nil {
			return fmt.Sprintf("Failed to update event: %v", err)
		}
		patch.Start = &start
	}
	if _, ok := args["end"]; ok {
		end, err := tk.timestampArg(args, "end")
		if err != nil {
			return fmt.Sprintf("Failed to update event: %v", err)
		}
		patch.End = &end
	}

	event, err := tk.backend.UpdateEvent(ctx, eventID, patch)
	if err != nil {
		logger.L.Warn("update event failed", "category", gcal.CategoryOf(err), "error", err)
		return fmt.Sprintf("Failed to update event: %v", err)
	}

	tk.record(event)
	return fmt.Sprintf("Event updated successfully: %s", event.HTMLLink)
}

func (tk *CalendarToolkit) deleteEvent(ctx context.Context, args map[string]any) string {
	eventID, _ := args["event_id"].(string)
	if eventID == "" {
		return "Failed to delete event: event_id is required"
	}

	if err := tk.backend.DeleteEvent(ctx, eventID); err != nil {
		logger.L.Warn("delete event failed", "category", gcal.CategoryOf(err), "error", err)
		return fmt.Sprintf("Failed to delete event: %v", err)
	}
	if tk.recorder != nil {
		tk.recorder.Forget(eventID)
	}
	return "Event deleted successfully"
}

func (tk *CalendarToolkit) currentDate() string {
	info := CurrentDate(tk.loc)
	formatted, err := json.Marshal(info)
	if err != nil {
		return fmt.Sprintf("Failed to determine current date: %v", err)
	}
	return string(formatted)
}

func (tk *CalendarToolkit) timestampArg(args map[string]any, key string) (time.Time, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := parseTimestamp(raw, tk.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s timestamp %q", key, raw)
	}
	return t, nil
}

func (tk *CalendarToolkit) record(events ...gcal.Event) {
	if tk.recorder == nil {
		return
	}
	tk.recorder.RecordEvents(events)
}
