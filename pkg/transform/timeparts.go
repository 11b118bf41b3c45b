package transform

import "time"

// EpochMillis converts a millisecond epoch timestamp the way the warehouse
// derivation does: integer division to whole seconds, interpreted as UTC.
func EpochMillis(ms int64) time.Time {
	return time.Unix(ms/1000, 0).UTC()
}

// TimeParts are the calendar fields stored in the time dimension.
type TimeParts struct {
	StartTime time.Time
	Hour      int
	Day       int
	// Week is the ISO 8601 week number, matching EXTRACT(week ...).
	Week  int
	Month int
	Year  int
	// Weekday counts from Sunday = 0, matching EXTRACT(dow ...).
	Weekday int
}

func Parts(t time.Time) TimeParts {
	t = t.UTC()
	_, week := t.ISOWeek()
	return TimeParts{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   int(t.Weekday()),
	}
}
