package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/username/shift-payroll/pkg/dateutil"
)

// Source provides the holidays of a given year
type Source interface {
	Holidays(ctx context.Context, year int) (*HolidaySet, error)
}

// Holiday is a single dated holiday; Name may be empty
type Holiday struct {
	Date time.Time
	Name string
}

// HolidaySet is a read-only set of calendar dates keyed by their YYYY-MM-DD form
type HolidaySet struct {
	days map[string]string
}

// NewHolidaySet builds a set from holidays; a later duplicate keeps the first non-empty name
func NewHolidaySet(holidays ...Holiday) *HolidaySet {
	hs := &HolidaySet{days: make(map[string]string, len(holidays))}
	for _, h := range holidays {
		hs.add(h.Date, h.Name)
	}
	return hs
}

func (hs *HolidaySet) add(date time.Time, name string) {
	key := dateutil.DateKey(date)
	if existing, ok := hs.days[key]; ok && existing != "" {
		return
	}
	hs.days[key] = strings.TrimSpace(name)
}

// ParseHolidays decodes a holiday file body: either a JSON list of date strings
// or an object whose keys are date strings and whose values are holiday names.
// Dates may be YYYY-MM-DD, DD.MM.YYYY or ISO date-times.
func ParseHolidays(data []byte) (*HolidaySet, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return NewHolidaySet(), nil
	}

	hs := NewHolidaySet()

	switch trimmed[0] {
	case '[':
		var dates []string
		if err := json.Unmarshal(data, &dates); err != nil {
			return nil, fmt.Errorf("failed to parse holiday list: %w", err)
		}
		for _, s := range dates {
			date, err := dateutil.ParseDate(s)
			if err != nil {
				return nil, fmt.Errorf("holidays: %w", err)
			}
			hs.add(date, "")
		}
	case '{':
		var named map[string]json.RawMessage
		if err := json.Unmarshal(data, &named); err != nil {
			return nil, fmt.Errorf("failed to parse holiday map: %w", err)
		}
		for key, raw := range named {
			date, err := dateutil.ParseDate(key)
			if err != nil {
				return nil, fmt.Errorf("holidays: %w", err)
			}
			var name string
			// Non-string values (true, 1, objects) only mark membership
			_ = json.Unmarshal(raw, &name)
			hs.add(date, name)
		}
	default:
		return nil, fmt.Errorf("holidays: expected a JSON list or object")
	}

	return hs, nil
}

// Contains reports whether the calendar day of date is a holiday
func (hs *HolidaySet) Contains(date time.Time) bool {
	if hs == nil {
		return false
	}
	_, ok := hs.days[dateutil.DateKey(date)]
	return ok
}

// Name returns the holiday name for date, if any
func (hs *HolidaySet) Name(date time.Time) string {
	if hs == nil {
		return ""
	}
	return hs.days[dateutil.DateKey(date)]
}

// Len returns the number of holidays
func (hs *HolidaySet) Len() int {
	if hs == nil {
		return 0
	}
	return len(hs.days)
}

// Dates returns the holiday keys (YYYY-MM-DD) in chronological order
func (hs *HolidaySet) Dates() []string {
	if hs == nil {
		return nil
	}
	keys := make([]string, 0, len(hs.days))
	for k := range hs.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Year returns the subset of holidays falling in year
func (hs *HolidaySet) Year(year int) *HolidaySet {
	out := NewHolidaySet()
	prefix := fmt.Sprintf("%04d-", year)
	for _, k := range hs.Dates() {
		if strings.HasPrefix(k, prefix) {
			out.days[k] = hs.days[k]
		}
	}
	return out
}

// Merge returns a new set holding the union of hs and other
func (hs *HolidaySet) Merge(other *HolidaySet) *HolidaySet {
	out := NewHolidaySet()
	for _, set := range []*HolidaySet{hs, other} {
		if set == nil {
			continue
		}
		for k, name := range set.days {
			if existing, ok := out.days[k]; ok && existing != "" {
				continue
			}
			out.days[k] = name
		}
	}
	return out
}
