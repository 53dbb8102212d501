package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFetchWindowDayAfterLast(t *testing.T) {
	today := mustDay("2026-08-28")

	from, to, ok := FetchWindow(mustDay("2026-08-20"), true, today, 450)
	assert.True(t, ok)
	assert.Equal(t, mustDay("2026-08-21"), from, "window starts the day after the last persisted date")
	assert.Equal(t, today, to)
}

func TestFetchWindowNoHistory(t *testing.T) {
	today := mustDay("2026-08-28")

	from, to, ok := FetchWindow(time.Time{}, false, today, 450)
	assert.True(t, ok)
	assert.Equal(t, today.AddDate(0, 0, -450), from)
	assert.Equal(t, today, to)
}

func TestFetchWindowGapOlderThanHorizon(t *testing.T) {
	today := mustDay("2026-08-28")

	from, _, ok := FetchWindow(mustDay("2020-01-01"), true, today, 450)
	assert.True(t, ok)
	assert.Equal(t, today.AddDate(0, 0, -450), from, "stale history falls back to the lookback horizon")
}

func TestFetchWindowAlreadyCurrent(t *testing.T) {
	today := mustDay("2026-08-28")

	_, _, ok := FetchWindow(mustDay("2026-08-27"), true, today, 450)
	assert.False(t, ok, "last date of yesterday means start == today, nothing to fetch")

	_, _, ok = FetchWindow(mustDay("2026-08-28"), true, today, 450)
	assert.False(t, ok)
}

func TestFetchWindowIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

	from, to, ok := FetchWindow(mustDay("2026-08-20"), true, today, 450)
	assert.True(t, ok)
	assert.Equal(t, mustDay("2026-08-21"), from)
	assert.Equal(t, mustDay("2026-08-28"), to)
}
