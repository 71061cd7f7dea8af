package lesson

import "time"

// DayLength is the span of a calendar day in milliseconds.
const DayLength int64 = 24 * 60 * 60 * 1000

// Midnight returns 00:00:00 of t's calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayOffset returns the milliseconds elapsed between local midnight of t's
// day and t. Lessons crossing midnight are not expected; an out-of-range
// result is returned as is and only affects rendering.
func DayOffset(t time.Time, loc *time.Location) int64 {
	return t.Sub(Midnight(t, loc)).Milliseconds()
}

// DateKey formats the calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// ClockString formats t in loc as HH:mm.
func ClockString(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

// ParseTimestamp accepts RFC3339 with or without fractional seconds.
func ParseTimestamp(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}
