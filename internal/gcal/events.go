package gcal

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/username/shift-payroll/internal/shift"
	"github.com/username/shift-payroll/pkg/dateutil"
)

// DefaultTimeZone is used when EventOptions.TimeZone is empty
const DefaultTimeZone = "Asia/Taipei"

// EventOptions controls how shifts are rendered as events
type EventOptions struct {
	TimeZone  string
	Location  string
	Workplace string
}

// BuildEvents renders one event per working day in chronological order.
// The summary carries the position of the day within its run of
// consecutive working days; a rest day restarts the count.
func BuildEvents(schedule *shift.Schedule, catalog *shift.Catalog, opts EventOptions) ([]Event, error) {
	tz := opts.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}

	var events []Event
	streak := 0

	for _, entry := range schedule.Entries() {
		if entry.Code.IsRest() {
			streak = 0
			continue
		}

		def, err := catalog.Lookup(entry.Code)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dateutil.DateKey(entry.Date), err)
		}
		if def.Minutes() <= 0 {
			return nil, fmt.Errorf("%s: %w", dateutil.DateKey(entry.Date),
				&shift.DurationError{Code: entry.Code, Start: def.Start, End: def.End})
		}

		streak++
		events = append(events, Event{
			Summary:     fmt.Sprintf("Workday %s %s", entry.Code, Ordinal(streak)),
			Location:    opts.Location,
			Description: fmt.Sprintf("Shift: %s, Location: %s", entry.Code, opts.Workplace),
			Start: EventTime{
				DateTime: def.Start.On(entry.Date, loc).Format(dateutil.LocalDateTimeLayout),
				TimeZone: tz,
			},
			End: EventTime{
				DateTime: def.End.On(entry.Date, loc).Format(dateutil.LocalDateTimeLayout),
				TimeZone: tz,
			},
		})
	}

	return events, nil
}

// Ordinal renders n as 1st, 2nd, 3rd, 4th, 11th, 21st...
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
