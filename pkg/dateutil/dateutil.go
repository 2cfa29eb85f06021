package dateutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date form used for schedule keys and holiday lookups
const DateLayout = "2006-01-02"

// LocalDateTimeLayout formats a wall-clock date-time without offset (calendar APIs pair it with a time zone name)
const LocalDateTimeLayout = "2006-01-02T15:04:05"

// ErrMalformedDate is returned when a date string matches none of the accepted layouts
var ErrMalformedDate = errors.New("malformed date")

// DateKey returns the canonical YYYY-MM-DD key of the date's calendar day
func DateKey(date time.Time) string {
	return date.Format(DateLayout)
}

// ParseISODate parses a strict YYYY-MM-DD date (UTC midnight)
func ParseISODate(dateStr string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(dateStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrMalformedDate, dateStr)
	}
	return t, nil
}

// ParseDate parses date string in various formats and truncates it to the calendar day
func ParseDate(dateStr string) (time.Time, error) {
	formats := []string{
		DateLayout,
		"02.01.2006",
		"2006/01/02",
		LocalDateTimeLayout,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05-0700",
		time.RFC3339,
	}

	s := strings.TrimSpace(dateStr)
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, dateStr)
}

// Month identifies a calendar month
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses "YYYY-MM" (a single digit month is accepted)
func ParseMonth(s string) (Month, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Month{}, fmt.Errorf("invalid month %q: use YYYY-MM (e.g., 2024-09)", s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return Month{}, fmt.Errorf("invalid year in %q: use YYYY-MM (e.g., 2024-09)", s)
	}

	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Month{}, fmt.Errorf("invalid month in %q: use YYYY-MM (e.g., 2024-09)", s)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("invalid month in %q: month must be between 1 and 12", s)
	}

	return Month{Year: year, Month: time.Month(month)}, nil
}

// String returns the zero padded YYYY-MM form
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// FirstDay returns the first day of the month (UTC midnight)
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the month
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Contains reports whether date falls in the month
func (m Month) Contains(date time.Time) bool {
	return date.Year() == m.Year && date.Month() == m.Month
}
