package shift

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Code identifies a shift type in the catalog
type Code string

// Rest marks a day off; it never resolves to a definition
const Rest Code = "X"

// IsRest returns true for the rest-day marker
func (c Code) IsRest() bool {
	return c == Rest
}

// TimeOfDay is a wall-clock time expressed in minutes since midnight
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24-hour clock)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("%w: %q (want HH:MM)", ErrMalformedTime, s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q: hour out of range", ErrMalformedTime, s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q: minute out of range", ErrMalformedTime, s)
	}

	return TimeOfDay(hours*60 + minutes), nil
}

// Hour returns the hour component
func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

// Minute returns the minute component
func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

// On places the time of day on the given calendar date in loc
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Definition holds the start and end of a shift type on a single day
type Definition struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Minutes returns end minus start; zero or negative means the definition is unusable
func (d Definition) Minutes() int {
	return int(d.End) - int(d.Start)
}

type definitionJSON struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// MarshalJSON writes the catalog file form {"start_time":"HH:MM","end_time":"HH:MM"}
func (d Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionJSON{StartTime: d.Start.String(), EndTime: d.End.String()})
}

// UnmarshalJSON reads the catalog file form
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw definitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := ParseTimeOfDay(raw.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := ParseTimeOfDay(raw.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}

	d.Start = start
	d.End = end
	return nil
}

// Catalog maps shift codes to their definitions. It is read-only after construction.
type Catalog struct {
	defs map[Code]Definition
}

// NewCatalog copies defs into a new catalog. The rest marker cannot be defined.
func NewCatalog(defs map[Code]Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[Code]Definition, len(defs))}
	for code, def := range defs {
		code = Code(strings.TrimSpace(string(code)))
		if code == "" {
			return nil, fmt.Errorf("catalog: empty shift code")
		}
		if code.IsRest() {
			return nil, fmt.Errorf("catalog: %q is reserved for rest days", string(Rest))
		}
		if _, dup := c.defs[code]; dup {
			return nil, fmt.Errorf("catalog: shift code %q is defined more than once", string(code))
		}
		c.defs[code] = def
	}
	return c, nil
}

// ParseCatalog decodes a catalog file body
func ParseCatalog(data []byte) (*Catalog, error) {
	var defs map[Code]Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse shift types: %w", err)
	}
	return NewCatalog(defs)
}

// LoadCatalog reads a catalog file from disk
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shift types file: %w", err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// Lookup resolves a code. The rest marker and absent codes fail with ErrUnknownShiftCode.
func (c *Catalog) Lookup(code Code) (Definition, error) {
	def, ok := c.defs[code]
	if !ok {
		return Definition{}, &UnknownCodeError{Code: code}
	}
	return def, nil
}

// Has reports whether code is defined
func (c *Catalog) Has(code Code) bool {
	_, ok := c.defs[code]
	return ok
}

// Codes returns the defined codes in sorted order
func (c *Catalog) Codes() []Code {
	codes := make([]Code, 0, len(c.defs))
	for code := range c.defs {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Len returns the number of defined codes
func (c *Catalog) Len() int {
	return len(c.defs)
}
