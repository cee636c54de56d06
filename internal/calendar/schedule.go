// Package calendar implements business-hour arithmetic against a weekly
// schedule of open intervals. All elapsed-time reasoning in the follow-up
// lifecycle (grace windows, overdue ages) goes through this package so that
// nights, weekends, and closed days never count against an advisor.
package calendar

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minutesPerDay bounds interval endpoints.
const minutesPerDay = 24 * 60

// Interval is a single open window within a day, in minutes from midnight.
// Start is inclusive, End exclusive: an 08:00-18:00 interval contains 08:00
// but not 18:00.
type Interval struct {
	Start int
	End   int
}

// WeekSchedule maps each weekday to its open intervals, sorted and
// non-overlapping. A weekday with no intervals is closed.
type WeekSchedule map[time.Weekday][]Interval

// DefaultSchedule returns the built-in weekly schedule:
// Mon-Fri 08:00-18:00, Sat 09:00-12:00, Sun closed.
func DefaultSchedule() WeekSchedule {
	weekdays := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}

	ws := make(WeekSchedule, len(weekdays)+1)
	for _, day := range weekdays {
		ws[day] = []Interval{{Start: 8 * 60, End: 18 * 60}}
	}
	ws[time.Saturday] = []Interval{{Start: 9 * 60, End: 12 * 60}}
	return ws
}

// scheduleFile is the YAML shape of a schedule file:
//
//	week:
//	  monday: ["08:00-18:00"]
//	  saturday: ["09:00-12:00"]
//
// Omitted days are closed.
type scheduleFile struct {
	Week map[string][]string `yaml:"week"`
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// LoadSchedule reads and validates a weekly schedule from a YAML file.
func LoadSchedule(path string) (WeekSchedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	ws := make(WeekSchedule, len(file.Week))
	for name, windows := range file.Week {
		weekday, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in schedule file", name)
		}

		intervals := make([]Interval, 0, len(windows))
		for _, window := range windows {
			iv, err := parseInterval(window)
			if err != nil {
				return nil, fmt.Errorf("weekday %s: %w", name, err)
			}
			intervals = append(intervals, iv)
		}
		ws[weekday] = intervals
	}

	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

// parseInterval parses a "HH:MM-HH:MM" window.
func parseInterval(window string) (Interval, error) {
	parts := strings.SplitN(strings.TrimSpace(window), "-", 2)
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("invalid interval %q, expected HH:MM-HH:MM", window)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return Interval{}, err
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Interval{}, err
	}

	return Interval{Start: start, End: end}, nil
}

func parseClock(raw string) (int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// Validate checks interval bounds, ordering, and overlap per weekday.
// It sorts each day's intervals in place.
func (ws WeekSchedule) Validate() error {
	for day, intervals := range ws {
		sort.Slice(intervals, func(i, j int) bool {
			return intervals[i].Start < intervals[j].Start
		})

		for i, iv := range intervals {
			if iv.Start < 0 || iv.End > minutesPerDay {
				return fmt.Errorf("%s: interval out of range", day)
			}
			if iv.Start >= iv.End {
				return fmt.Errorf("%s: interval start must precede end", day)
			}
			if i > 0 && iv.Start < intervals[i-1].End {
				return fmt.Errorf("%s: overlapping intervals", day)
			}
		}
	}
	return nil
}
