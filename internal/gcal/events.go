package gcal

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Event is a single calendar entry as seen by the rest of the application.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	HTMLLink    string    `json:"html_link,omitempty"`
}

// EventInput carries the fields for creating an event.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// EventPatch carries a partial update; nil fields are left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
}

func (c *Client) eventDateTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: c.timezone,
	}
}

func fromGoogleEvent(item *calendar.Event) Event {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			ev.Start = t
		}
	}
	if item.End != nil && item.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			ev.End = t
		}
	}
	return ev
}

// CreateEvent inserts a new event into the configured calendar.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (Event, error) {
	const op = "create event"
	if input.Title == "" {
		return Event{}, validationError(op, "title is required")
	}
	if input.Start.IsZero() || input.End.IsZero() {
		return Event{}, validationError(op, "start and end are required")
	}

	service, err := c.svc(op)
	if err != nil {
		return Event{}, err
	}

	body := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Location:    input.Location,
		Start:       c.eventDateTime(input.Start),
		End:         c.eventDateTime(input.End),
	}

	created, err := service.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return Event{}, classify(op, err)
	}
	return fromGoogleEvent(created), nil
}

// ListUpcoming returns up to limit events starting at or after from, earliest
// first. A zero-length result is an empty slice, never an error.
func (c *Client) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]Event, error) {
	const op = "list events"
	if limit <= 0 {
		limit = 10
	}

	service, err := c.svc(op)
	if err != nil {
		return nil, err
	}

	resp, err := service.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		MaxResults(int64(limit)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(op, err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Status == "cancelled" {
			continue
		}
		events = append(events, fromGoogleEvent(item))
	}
	return events, nil
}

// GetEvent fetches a single event by id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (Event, error) {
	const op = "get event"
	if eventID == "" {
		return Event{}, validationError(op, "event id is required")
	}

	service, err := c.svc(op)
	if err != nil {
		return Event{}, err
	}

	item, err := service.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Event{}, classify(op, err)
	}
	return fromGoogleEvent(item), nil
}

// UpdateEvent applies a partial update with read-modify-write semantics: the
// stored event is fetched, the supplied fields are overlaid and the result is
// written back. A concurrent external modification between the read and the
// write is lost (last writer wins).
func (c *Client) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (Event, error) {
	const op = "update event"
	if eventID == "" {
		return Event{}, validationError(op, "event id is required")
	}

	service, err := c.svc(op)
	if err != nil {
		return Event{}, err
	}

	item, err := service.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Event{}, classify(op, err)
	}

	if patch.Title != nil {
		item.Summary = *patch.Title
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Location != nil {
		item.Location = *patch.Location
	}
	if patch.Start != nil {
		item.Start = c.eventDateTime(*patch.Start)
	}
	if patch.End != nil {
		item.End = c.eventDateTime(*patch.End)
	}

	updated, err := service.Events.Update(c.calendarID, eventID, item).Context(ctx).Do()
	if err != nil {
		return Event{}, classify(op, err)
	}
	return fromGoogleEvent(updated), nil
}

// DeleteEvent removes an event. Deleting an id that does not exist is a
// not_found failure, not a no-op.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	const op = "delete event"
	if eventID == "" {
		return validationError(op, "event id is required")
	}

	service, err := c.svc(op)
	if err != nil {
		return err
	}

	if err := service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return classify(op, err)
	}
	return nil
}
