package shift

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/username/shift-payroll/pkg/dateutil"
)

// ErrScheduleExists is returned when saving over an existing schedule without overwrite
var ErrScheduleExists = errors.New("schedule file already exists")

// Entry is one scheduled day
type Entry struct {
	Date time.Time
	Code Code
}

// Schedule is a chronologically ordered set of entries with unique dates
type Schedule struct {
	entries []Entry
}

// NewSchedule sorts entries by date and rejects duplicate dates
func NewSchedule(entries []Entry) (*Schedule, error) {
	sorted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		code := Code(strings.TrimSpace(string(e.Code)))
		if code == "" {
			return nil, fmt.Errorf("schedule: empty shift code on %s", dateutil.DateKey(e.Date))
		}
		sorted = append(sorted, Entry{
			Date: time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC),
			Code: code,
		})
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("schedule: duplicate date %s", dateutil.DateKey(sorted[i].Date))
		}
	}

	return &Schedule{entries: sorted}, nil
}

// ParseSchedule decodes a schedule file body {"YYYY-MM-DD": code}
func ParseSchedule(data []byte) (*Schedule, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for key, code := range raw {
		date, err := dateutil.ParseISODate(key)
		if err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
		entries = append(entries, Entry{Date: date, Code: Code(code)})
	}

	return NewSchedule(entries)
}

// LoadSchedule reads a schedule file from disk
func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	schedule, err := ParseSchedule(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schedule, nil
}

// FromCodes lays codes onto consecutive days starting at the first of the month.
// Fewer codes than days leaves the tail of the month unscheduled.
func FromCodes(month dateutil.Month, codes []string) (*Schedule, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no shift codes given for %s", month)
	}
	if len(codes) > month.Days() {
		return nil, fmt.Errorf("%d shift codes given but %s has only %d days", len(codes), month, month.Days())
	}

	first := month.FirstDay()
	entries := make([]Entry, len(codes))
	for i, code := range codes {
		entries[i] = Entry{Date: first.AddDate(0, 0, i), Code: Code(code)}
	}
	return NewSchedule(entries)
}

// Entries returns a copy of the entries in chronological order
func (s *Schedule) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of scheduled days including rest days
func (s *Schedule) Len() int {
	return len(s.entries)
}

// Validate checks that every non-rest code exists in the catalog
func (s *Schedule) Validate(catalog *Catalog) error {
	for _, e := range s.entries {
		if e.Code.IsRest() {
			continue
		}
		if !catalog.Has(e.Code) {
			return &UnknownCodeError{Code: e.Code, Date: e.Date}
		}
	}
	return nil
}

// MarshalJSON writes the schedule file form
func (s *Schedule) MarshalJSON() ([]byte, error) {
	raw := make(map[string]string, len(s.entries))
	for _, e := range s.entries {
		raw[dateutil.DateKey(e.Date)] = string(e.Code)
	}
	return json.Marshal(raw)
}

// Save writes the schedule to path. An existing file is kept unless overwrite is set.
func (s *Schedule) Save(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrScheduleExists, path)
		}
	}

	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create schedule directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write schedule file: %w", err)
	}
	return nil
}
