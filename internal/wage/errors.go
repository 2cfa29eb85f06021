package wage

import (
	"errors"
	"fmt"

	"github.com/username/shift-payroll/internal/shift"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfig is returned when a RateConfig cannot be used for a computation.
	ErrConfig = errors.New("invalid rate configuration")

	// ErrUnknownShiftCode and ErrInvalidShiftDuration are re-exported so callers
	// of this package need not import shift to classify engine failures.
	ErrUnknownShiftCode     = shift.ErrUnknownShiftCode
	ErrInvalidShiftDuration = shift.ErrInvalidShiftDuration
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError names the offending rate setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid rate configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// DayError attaches the failing schedule day to an engine error.
type DayError struct {
	Entry shift.Entry
	Err   error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Entry.Date.Format("2006-01-02"), string(e.Entry.Code), e.Err)
}

func (e *DayError) Unwrap() error {
	return e.Err
}
