package picker

import "time"

// MergeDate returns current moved to the calendar date of picked, keeping
// current's time of day and location.
func MergeDate(current, picked time.Time) time.Time {
	y, m, d := picked.In(current.Location()).Date()
	return time.Date(y, m, d,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(),
		current.Location())
}

// MergeTime returns current with the hour and minute of picked. Seconds are
// cleared, as a time picker has minute resolution.
func MergeTime(current, picked time.Time) time.Time {
	picked = picked.In(current.Location())
	y, m, d := current.Date()
	return time.Date(y, m, d, picked.Hour(), picked.Minute(), 0, 0, current.Location())
}
