package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testParser(t *testing.T, now time.Time) *Parser {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	p := NewParser(loc)
	p.now = func() time.Time { return now.In(loc) }
	return p
}

func TestParseTimestampCurrentYear(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	p := testParser(t, now)

	res := p.Parse("21 August, 10-11:00 BST")
	require.Equal(t, KindTimestamp, res.Kind)
	require.Equal(t, 2025, res.Time.Year())
	require.Equal(t, time.August, res.Time.Month())
	require.Equal(t, 21, res.Time.Day())
	require.Equal(t, 10, res.Time.Hour())
	require.Equal(t, 0, res.Time.Minute())
}

func TestParseRollsOverToNextYear(t *testing.T) {
	now := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)
	p := testParser(t, now)

	res := p.Parse("19 June, 10-11:00 BST")
	require.Equal(t, KindTimestamp, res.Kind)
	require.Equal(t, 2026, res.Time.Year())
	require.Equal(t, time.June, res.Time.Month())
}

func TestParseWithoutEndHour(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := testParser(t, now)

	res := p.Parse("5 February, 14:30")
	require.Equal(t, KindTimestamp, res.Kind)
	require.Equal(t, 14, res.Time.Hour())
	require.Equal(t, 30, res.Time.Minute())
}

func TestParseShortMonthName(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := testParser(t, now)

	res := p.Parse("12 Sep, 10-11:00")
	require.Equal(t, KindTimestamp, res.Kind)
	require.Equal(t, time.September, res.Time.Month())
}

func TestParseLeapDayDoesNotRollOver(t *testing.T) {
	// Feb 29 exists in 2024 but not in 2025, so once the date has passed
	// the expression no longer names a real day.
	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	p := testParser(t, now)

	res := p.Parse("29 February, 10-11:00 GMT")
	require.Equal(t, KindInvalid, res.Kind)
}

func TestParseLeapDayBeforeItPasses(t *testing.T) {
	now := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	p := testParser(t, now)

	res := p.Parse("29 February, 10-11:00 GMT")
	require.Equal(t, KindTimestamp, res.Kind)
	require.Equal(t, 2024, res.Time.Year())
	require.Equal(t, 29, res.Time.Day())
}

func TestParseOnDemand(t *testing.T) {
	p := testParser(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	for _, raw := range []string{"On Demand", "on demand", "Watch ON DEMAND now"} {
		res := p.Parse(raw)
		require.Equal(t, KindOnDemand, res.Kind, "input %q", raw)
	}
}

func TestParseInvalid(t *testing.T) {
	p := testParser(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	for _, raw := range []string{
		"",
		"next Tuesday",
		"31 June, 10-11:00 BST",
		"21 Frobuary, 10-11:00",
		"21 August, 27:00",
		"Join us 21 August, 10-11:00 BST",
	} {
		res := p.Parse(raw)
		require.Equal(t, KindInvalid, res.Kind, "input %q", raw)
	}
}
