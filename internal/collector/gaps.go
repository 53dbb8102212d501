package collector

import "time"

// FetchWindow computes the incremental fetch window for one symbol or pair.
//
// The window starts the day after the last persisted date. With no persisted
// data, or a gap older than the lookback horizon, it falls back to today
// minus lookbackDays. ok is false when the computed start is not before
// today: the series is already current and no network call is needed.
func FetchWindow(last time.Time, hasLast bool, today time.Time, lookbackDays int) (from, to time.Time, ok bool) {
	today = truncateDay(today)
	horizon := today.AddDate(0, 0, -lookbackDays)

	from = horizon
	if hasLast {
		next := truncateDay(last).AddDate(0, 0, 1)
		if next.After(horizon) {
			from = next
		}
	}

	if !from.Before(today) {
		return time.Time{}, time.Time{}, false
	}
	return from, today, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
