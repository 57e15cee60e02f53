/*
calendar.go - Working-day arithmetic

PURPOSE:
  Counts working days (Mon-Fri) across inclusive date ranges. Leave
  consumption is day-count based; weekends never consume balance.

POLICY NOTE:
  Public holidays are NOT excluded from the working-day count. The only
  place holidays matter is inside the TOIL overnight-day-off rule, where
  they are already folded into the unconditional 4-hour award (toil.go).
  These are two independent policies; do not unify them.
*/
package leave

import "time"

// Calendar answers working-day questions for date ranges. Injected so
// tests can substitute fixed calendars if agency-specific rules ever grow.
type Calendar interface {
	// WorkingDaysBetween counts weekdays in [start, end] inclusive,
	// excluding Saturdays and Sundays. Returns 0 when end < start.
	WorkingDaysBetween(start, end time.Time) int
}

// WeekdayCalendar is the standard Mon-Fri calendar.
type WeekdayCalendar struct{}

func (WeekdayCalendar) WorkingDaysBetween(start, end time.Time) int {
	start = dateOnly(start)
	end = dateOnly(end)
	if end.Before(start) {
		return 0
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// dateOnly truncates a timestamp to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// YearRange returns the inclusive [Jan 1, Dec 31] bounds of a year.
func YearRange(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
