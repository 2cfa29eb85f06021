package wage

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is one overtime band. Hours bounds the band; the last tier of a
// RateConfig is unbounded and its Hours are ignored.
type Tier struct {
	Hours decimal.Decimal
	Rate  decimal.Decimal
}

// RateConfig is the immutable pay rule set for one computation
type RateConfig struct {
	HourlyRate  decimal.Decimal
	BaseHours   decimal.Decimal
	Tiers       []Tier
	HolidayRate decimal.Decimal
}

// NewRateConfig builds a RateConfig from the legacy six constants. The two
// overtime rates become the tiers [(limit, rate1), (unbounded, rate2)].
func NewRateConfig(hourlyRate, baseHours, overtimeHoursLimit, overtimeRate1, overtimeRate2, holidayRate float64) RateConfig {
	return RateConfig{
		HourlyRate: decimal.NewFromFloat(hourlyRate),
		BaseHours:  decimal.NewFromFloat(baseHours),
		Tiers: []Tier{
			{Hours: decimal.NewFromFloat(overtimeHoursLimit), Rate: decimal.NewFromFloat(overtimeRate1)},
			{Rate: decimal.NewFromFloat(overtimeRate2)},
		},
		HolidayRate: decimal.NewFromFloat(holidayRate),
	}
}

// Validate reports the first unusable setting as a *ConfigError
func (rc RateConfig) Validate() error {
	if !rc.HourlyRate.IsPositive() {
		return &ConfigError{Field: "hourly_rate", Reason: "must be positive"}
	}
	if !rc.BaseHours.IsPositive() {
		return &ConfigError{Field: "base_hours", Reason: "must be positive"}
	}
	if !rc.HolidayRate.IsPositive() {
		return &ConfigError{Field: "holiday_rate", Reason: "must be positive"}
	}
	if len(rc.Tiers) == 0 {
		return &ConfigError{Field: "overtime_tiers", Reason: "must contain at least one tier"}
	}
	for i, tier := range rc.Tiers {
		if !tier.Rate.IsPositive() {
			return &ConfigError{Field: fmt.Sprintf("overtime_tiers[%d].rate", i), Reason: "must be positive"}
		}
		if i < len(rc.Tiers)-1 && !tier.Hours.IsPositive() {
			return &ConfigError{Field: fmt.Sprintf("overtime_tiers[%d].hours", i), Reason: "must be positive"}
		}
	}
	return nil
}

// String renders the configuration canonically; equal configs render equally
func (rc RateConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hourly=%s base=%s holiday=%s tiers=", rc.HourlyRate, rc.BaseHours, rc.HolidayRate)
	for i, tier := range rc.Tiers {
		if i > 0 {
			b.WriteByte(',')
		}
		if i == len(rc.Tiers)-1 {
			fmt.Fprintf(&b, "(*,%s)", tier.Rate)
		} else {
			fmt.Fprintf(&b, "(%s,%s)", tier.Hours, tier.Rate)
		}
	}
	return b.String()
}
