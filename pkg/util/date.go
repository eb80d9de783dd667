package util

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseDateDefault parses a date or returns the default if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, err := ParseDate(s); err == nil {
		return t
	}
	return def
}

// Day truncates a timestamp to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SampleDates expands [start, end] into sample dates for a frequency:
// every calendar day, every Friday, or the first day of each month.
func SampleDates(start, end time.Time, freq string) ([]time.Time, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("date range end %s before start %s",
			end.Format(DateLayout), start.Format(DateLayout))
	}

	var out []time.Time
	switch freq {
	case "daily":
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, d)
		}
	case "weekly":
		d := start
		for d.Weekday() != time.Friday {
			d = d.AddDate(0, 0, 1)
		}
		for ; !d.After(end); d = d.AddDate(0, 0, 7) {
			out = append(out, d)
		}
	case "monthly":
		d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		if d.Before(start) {
			d = d.AddDate(0, 1, 0)
		}
		for ; !d.After(end); d = d.AddDate(0, 1, 0) {
			out = append(out, d)
		}
	default:
		return nil, fmt.Errorf("unknown sampling frequency %q", freq)
	}
	return out, nil
}

// PeriodEnd returns the end of the outcome window that follows a sample date.
func PeriodEnd(date time.Time, freq string) time.Time {
	switch freq {
	case "daily":
		return date.AddDate(0, 0, 1)
	case "monthly":
		return date.AddDate(0, 1, 0)
	default:
		return date.AddDate(0, 0, 7)
	}
}
