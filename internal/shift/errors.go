package shift

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownShiftCode is returned when a schedule references a code missing from the catalog
	ErrUnknownShiftCode = errors.New("unknown shift code")
	// ErrInvalidShiftDuration is returned when a shift does not end after it starts
	ErrInvalidShiftDuration = errors.New("invalid shift duration")
	// ErrMalformedTime is returned for time-of-day strings that are not HH:MM
	ErrMalformedTime = errors.New("malformed time")
)

// UnknownCodeError identifies the offending code and, when known, the scheduled date
type UnknownCodeError struct {
	Code Code
	Date time.Time
}

func (e *UnknownCodeError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("unknown shift code %q", string(e.Code))
	}
	return fmt.Sprintf("unknown shift code %q on %s", string(e.Code), e.Date.Format("2006-01-02"))
}

func (e *UnknownCodeError) Unwrap() error {
	return ErrUnknownShiftCode
}

// DurationError describes a shift definition whose end is not after its start
type DurationError struct {
	Code  Code
	Start TimeOfDay
	End   TimeOfDay
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("shift %q: end %s is not after start %s", string(e.Code), e.End, e.Start)
}

func (e *DurationError) Unwrap() error {
	return ErrInvalidShiftDuration
}
