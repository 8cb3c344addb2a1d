package models

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// CalendarDay is a UTC calendar date usable as a map key.
type CalendarDay struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) CalendarDay {
	utc := t.UTC()
	return CalendarDay{Year: utc.Year(), Month: utc.Month(), Day: utc.Day()}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(value string) (CalendarDay, error) {
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return CalendarDay{}, fmt.Errorf("parse calendar day %q: %w", value, err)
	}
	return DayOf(t), nil
}

// Time returns midnight UTC of the day.
func (d CalendarDay) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the day was never set.
func (d CalendarDay) IsZero() bool {
	return d == CalendarDay{}
}

// Before reports whether d is strictly earlier than other.
func (d CalendarDay) Before(other CalendarDay) bool {
	return d.Time().Before(other.Time())
}

// DaysSince returns the whole number of days from other to d.
func (d CalendarDay) DaysSince(other CalendarDay) int {
	return int(d.Time().Sub(other.Time()).Hours() / 24)
}

func (d CalendarDay) String() string {
	return d.Time().Format(dayLayout)
}

// MarshalText renders the day as YYYY-MM-DD so JSON output stays compact.
func (d CalendarDay) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses YYYY-MM-DD.
func (d *CalendarDay) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
