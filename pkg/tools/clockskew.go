package tools

import (
	"time"
)

// This file compensates for the development machine's misconfigured system
// clock, which reports dates in 2024. It is a narrow, environment-specific
// patch, not general date handling.
// TODO: remove skewYear and the anchor constants once the host clock is fixed.
const (
	// skewYear is the year the broken clock reports.
	skewYear = 2024
	// anchorYear and anchorMonth are the real current year and month.
	anchorYear  = 2025
	anchorMonth = time.June
)

// correctTimestamp rewrites a timestamp bearing the known-wrong year to the
// anchor year, coercing the month to the anchor month as well. Timestamps
// with any other year pass through unchanged, so reapplying the correction is
// a no-op.
func correctTimestamp(t time.Time) time.Time {
	if t.Year() != skewYear {
		return t
	}
	return time.Date(anchorYear, anchorMonth, t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DateInfo is the structured "today" the delegate anchors its reasoning on.
// Year and month come from the anchor constants; only the day of month is
// taken from the system clock.
type DateInfo struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Day      int    `json:"day"`
	Weekday  string `json:"weekday"`
	Timezone string `json:"timezone"`
	Date     string `json:"date"`
}

// CurrentDate returns the anchored current date in the given location.
func CurrentDate(loc *time.Location) DateInfo {
	if loc == nil {
		loc = time.Local
	}
	now := time.Now().In(loc)
	anchored := time.Date(anchorYear, anchorMonth, now.Day(), now.Hour(), now.Minute(), now.Second(), 0, loc)
	return DateInfo{
		Year:     anchored.Year(),
		Month:    int(anchored.Month()),
		Day:      anchored.Day(),
		Weekday:  anchored.Weekday().String(),
		Timezone: loc.String(),
		Date:     anchored.Format("2006-01-02"),
	}
}

// anchoredNow returns the current instant pinned to the anchor year and
// month, used as the lower bound when listing upcoming events. Like
// CurrentDate it only trusts the system clock for the day and time of day.
func anchoredNow(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now := time.Now().In(loc)
	return time.Date(anchorYear, anchorMonth, now.Day(),
		now.Hour(), now.Minute(), now.Second(), 0, loc)
}

// parseTimestamp accepts an RFC3339 timestamp or a naive ISO-8601 one, which
// is interpreted in the given location. The skew correction is applied to the
// result.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return correctTimestamp(t), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return correctTimestamp(t), nil
}
