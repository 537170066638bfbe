package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestCorrectTimestamp_PassThroughOnCorrectYear(t *testing.T) {
	in := mustParse(t, "2025-06-01T10:00:00-03:00")
	require.Equal(t, in, correctTimestamp(in))

	// Years other than the skewed one are never touched, even outside the
	// anchor month.
	other := mustParse(t, "2025-05-10T10:00:00-03:00")
	require.Equal(t, other, correctTimestamp(other))
}

func TestCorrectTimestamp_RewritesSkewedYear(t *testing.T) {
	in := mustParse(t, "2024-06-17T10:00:00-03:00")
	out := correctTimestamp(in)

	require.Equal(t, "2025-06-17T10:00:00-03:00", out.Format(time.RFC3339))
}

func TestCorrectTimestamp_CoercesMonth(t *testing.T) {
	in := mustParse(t, "2024-03-05T09:30:00-03:00")
	out := correctTimestamp(in)

	require.Equal(t, 2025, out.Year())
	require.Equal(t, time.June, out.Month())
	require.Equal(t, 5, out.Day())
	require.Equal(t, 9, out.Hour())
	require.Equal(t, 30, out.Minute())
}

func TestCorrectTimestamp_Idempotent(t *testing.T) {
	samples := []string{
		"2024-06-17T10:00:00-03:00",
		"2024-11-02T23:59:59Z",
		"2025-06-01T10:00:00-03:00",
		"2023-01-01T00:00:00Z",
	}
	for _, sample := range samples {
		once := correctTimestamp(mustParse(t, sample))
		twice := correctTimestamp(once)
		require.Equal(t, once, twice, "correction must be a no-op on already-corrected input: %s", sample)
	}
}

func TestParseTimestamp(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	// RFC3339 input keeps its offset.
	got, err := parseTimestamp("2025-06-01T10:00:00-03:00", loc)
	require.NoError(t, err)
	require.Equal(t, "2025-06-01T10:00:00-03:00", got.Format(time.RFC3339))

	// Naive ISO-8601 input is interpreted in the configured location.
	got, err = parseTimestamp("2025-05-10T10:00:00", loc)
	require.NoError(t, err)
	require.Equal(t, loc, got.Location())
	require.Equal(t, 10, got.Hour())

	// Skewed input gets corrected regardless of form.
	got, err = parseTimestamp("2024-06-17T10:00:00", loc)
	require.NoError(t, err)
	require.Equal(t, 2025, got.Year())

	_, err = parseTimestamp("not-a-date", loc)
	require.Error(t, err)
}

func TestCurrentDate_AnchoredYearAndMonth(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	info := CurrentDate(loc)

	// On the 31st of a month the anchored date normalizes past June, so
	// compare against the same construction instead of raw clock fields.
	now := time.Now().In(loc)
	want := time.Date(anchorYear, anchorMonth, now.Day(), 0, 0, 0, 0, loc)
	require.Equal(t, want.Year(), info.Year)
	require.Equal(t, int(want.Month()), info.Month)
	require.Equal(t, want.Day(), info.Day)
	require.Equal(t, want.Format("2006-01-02"), info.Date)
	require.Equal(t, "America/Toronto", info.Timezone)
	require.NotEmpty(t, info.Weekday)
}
