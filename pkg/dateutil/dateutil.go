package dateutil

import (
	"time"

	"github.com/jinzhu/now"
)

// Day truncates t to midnight UTC. Accounting dates carry no time of day.
func Day(t time.Time) time.Time {
	return now.With(t.UTC()).BeginningOfDay()
}

// DayIn returns the calendar date of the instant t as seen in loc, stored as
// midnight UTC. A nil loc reads the date in t's own location.
func DayIn(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	local := now.With(t).BeginningOfDay()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths adds n months to day, clamping to the last day of the target month
// so Jan 31 + 1 month is Feb 28 (or 29) rather than Mar 3.
func AddMonths(day time.Time, n int) time.Time {
	day = Day(day)
	return AddMonthsOnDay(day, n, day.Day())
}

// AddMonthsOnDay moves n months from day and lands on dayOfMonth, or on the
// last day of the target month when it is shorter. Recurring schedules use it
// to return to the 31st after passing through February.
func AddMonthsOnDay(day time.Time, n, dayOfMonth int) time.Time {
	day = Day(day)
	firstOfTarget := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	lastOfTarget := now.With(firstOfTarget).EndOfMonth()
	if dayOfMonth > lastOfTarget.Day() {
		return Day(lastOfTarget)
	}
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}
	return firstOfTarget.AddDate(0, 0, dayOfMonth-1)
}

// AddYears adds n years, clamping Feb 29 to Feb 28 in non-leap years.
func AddYears(day time.Time, n int) time.Time {
	return AddMonths(day, 12*n)
}

// InRange reports whether day lies in [start, end] by calendar date.
func InRange(day, start, end time.Time) bool {
	day = Day(day)
	return !day.Before(Day(start)) && !day.After(Day(end))
}
