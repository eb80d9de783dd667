package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-01-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := ParseDate("01/05/2024"); err == nil {
		t.Fatal("expected error for bad layout")
	}
}

func TestSampleDatesWeekly(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	dates, err := SampleDates(start, end, "weekly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 13 {
		t.Fatalf("expected 13 Fridays in Q1 2024, got %d", len(dates))
	}
	for _, d := range dates {
		if d.Weekday() != time.Friday {
			t.Errorf("%s is not a Friday", d.Format(DateLayout))
		}
	}
	if !dates[0].Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first Friday = %v", dates[0])
	}
}

func TestSampleDatesDaily(t *testing.T) {
	start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	dates, err := SampleDates(start, end, "daily")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 5 { // leap year: Feb 27, 28, 29, Mar 1, 2
		t.Fatalf("expected 5 days, got %d", len(dates))
	}
}

func TestSampleDatesMonthly(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	dates, err := SampleDates(start, end, "monthly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 3 { // Feb 1, Mar 1, Apr 1
		t.Fatalf("expected 3 month starts, got %d", len(dates))
	}
}

func TestSampleDatesErrors(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := SampleDates(start, start.AddDate(0, 0, -1), "daily"); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := SampleDates(start, start, "hourly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}
