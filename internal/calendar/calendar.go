package calendar

import "time"

// BusinessHoursBetween returns the number of business hours between start and
// end under the schedule, as a fraction-capable float (minutes matter).
// Both endpoints are clipped to the union of open intervals; time outside any
// open window contributes nothing. Returns 0 when end is not after start.
func BusinessHoursBetween(start, end time.Time, ws WeekSchedule) float64 {
	if !end.After(start) {
		return 0
	}

	// Walk day by day in the start timestamp's location.
	end = end.In(start.Location())

	var total time.Duration
	day := startOfDay(start)
	for !day.After(end) {
		for _, iv := range ws[day.Weekday()] {
			open := day.Add(time.Duration(iv.Start) * time.Minute)
			close := day.Add(time.Duration(iv.End) * time.Minute)

			if open.Before(start) {
				open = start
			}
			if close.After(end) {
				close = end
			}
			if close.After(open) {
				total += close.Sub(open)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return total.Hours()
}

// Contains reports whether the instant falls inside an open interval.
// Interval starts are inclusive and ends exclusive, so the closing minute
// itself is outside business hours.
func (ws WeekSchedule) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	for _, iv := range ws[t.Weekday()] {
		if minute >= iv.Start && minute < iv.End {
			return true
		}
	}
	return false
}

// NextOpenAfter returns t if it is already within business hours, otherwise
// the start of the next open interval. The zero time is returned if no open
// interval exists in the following two weeks (a fully closed schedule).
func NextOpenAfter(t time.Time, ws WeekSchedule) time.Time {
	if ws.Contains(t) {
		return t
	}

	minute := t.Hour()*60 + t.Minute()
	day := startOfDay(t)
	for i := 0; i < 14; i++ {
		for _, iv := range ws[day.Weekday()] {
			if i == 0 && iv.Start <= minute {
				continue
			}
			return day.Add(time.Duration(iv.Start) * time.Minute)
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
