package wage

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/username/shift-payroll/internal/calendar"
	"github.com/username/shift-payroll/internal/shift"
)

var (
	minutesPerHour  = decimal.NewFromInt(60)
	restPerBlock    = decimal.NewFromFloat(0.5)
	restBlockLength = 4 * 60 // minutes
)

// Calculator turns a schedule into pay totals
type Calculator interface {
	Compute(schedule *shift.Schedule, catalog *shift.Catalog, holidays *calendar.HolidaySet, rates RateConfig) (*Result, error)
}

// DayResult is the breakdown of one worked day
type DayResult struct {
	Date          time.Time
	Code          shift.Code
	Holiday       bool
	DutyHours     decimal.Decimal
	RestHours     decimal.Decimal
	NetHours      decimal.Decimal
	OvertimeHours decimal.Decimal
	Pay           decimal.Decimal
}

// Result holds the rounded totals and the chronological per-day breakdown.
// Per-day values are unrounded.
type Result struct {
	TotalHours  decimal.Decimal
	TotalWage   decimal.Decimal
	Days        []DayResult
	RestDays    int
	HolidayDays int
}

// WorkedDays returns the number of days with a shift
func (r *Result) WorkedDays() int {
	return len(r.Days)
}

func (r *Result) clone() *Result {
	out := *r
	out.Days = make([]DayResult, len(r.Days))
	copy(out.Days, r.Days)
	return &out
}

// Engine applies the rest deduction, overtime tiers and holiday override
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new Engine
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Compute evaluates every scheduled day in chronological order. The first
// invalid day aborts the computation and no partial result is returned.
func (e *Engine) Compute(schedule *shift.Schedule, catalog *shift.Catalog, holidays *calendar.HolidaySet, rates RateConfig) (*Result, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		TotalHours: decimal.Zero,
		TotalWage:  decimal.Zero,
	}
	if schedule == nil {
		return result, nil
	}
	if catalog == nil {
		catalog = &shift.Catalog{}
	}

	// Totals are accumulated in minutes and in pay*60 so that the single
	// division by 60 happens just before rounding.
	totalMinutes := 0
	totalPay := decimal.Zero

	for _, entry := range schedule.Entries() {
		if entry.Code.IsRest() {
			result.RestDays++
			continue
		}

		day, payMinutes, err := e.computeDay(entry, catalog, holidays, rates)
		if err != nil {
			return nil, &DayError{Entry: entry, Err: err}
		}

		if day.Holiday {
			result.HolidayDays++
		}
		totalMinutes += day.minutes
		totalPay = totalPay.Add(payMinutes)
		result.Days = append(result.Days, day.DayResult)
	}

	result.TotalHours = decimal.NewFromInt(int64(totalMinutes)).Div(minutesPerHour).Round(2)
	result.TotalWage = totalPay.Div(minutesPerHour).Round(2)

	e.logger.Debug("Wage computed",
		zap.Int("worked_days", result.WorkedDays()),
		zap.Int("rest_days", result.RestDays),
		zap.Int("holiday_days", result.HolidayDays),
		zap.String("total_hours", result.TotalHours.StringFixed(2)),
		zap.String("total_wage", result.TotalWage.StringFixed(2)))

	return result, nil
}

type dayMinutes struct {
	DayResult
	minutes int
}

// computeDay returns the day and its pay multiplied by 60
func (e *Engine) computeDay(entry shift.Entry, catalog *shift.Catalog, holidays *calendar.HolidaySet, rates RateConfig) (dayMinutes, decimal.Decimal, error) {
	def, err := catalog.Lookup(entry.Code)
	if err != nil {
		return dayMinutes{}, decimal.Zero, err
	}

	minutes := def.Minutes()
	if minutes <= 0 {
		return dayMinutes{}, decimal.Zero, &shift.DurationError{Code: entry.Code, Start: def.Start, End: def.End}
	}

	dutyMinutes := decimal.NewFromInt(int64(minutes))
	rest := RestHours(minutes)
	netMinutes := dutyMinutes.Sub(rest.Mul(minutesPerHour))

	day := dayMinutes{
		DayResult: DayResult{
			Date:          entry.Date,
			Code:          entry.Code,
			DutyHours:     dutyMinutes.Div(minutesPerHour),
			RestHours:     rest,
			NetHours:      netMinutes.Div(minutesPerHour),
			OvertimeHours: decimal.Zero,
		},
		minutes: minutes,
	}

	var payMinutes decimal.Decimal
	baseMinutes := rates.BaseHours.Mul(minutesPerHour)

	switch {
	case holidays.Contains(entry.Date):
		day.Holiday = true
		payMinutes = dutyMinutes.Mul(rates.HourlyRate).Mul(rates.HolidayRate)
		e.logger.Debug("Holiday rate applied",
			zap.String("date", entry.Date.Format("2006-01-02")),
			zap.String("code", string(entry.Code)))
	case dutyMinutes.LessThanOrEqual(baseMinutes):
		payMinutes = netMinutes.Mul(rates.HourlyRate)
	default:
		day.OvertimeHours = dutyMinutes.Sub(baseMinutes).Div(minutesPerHour).Floor()
		pay := rates.BaseHours.Mul(rates.HourlyRate).Add(OvertimePay(day.OvertimeHours, rates))
		payMinutes = pay.Mul(minutesPerHour)
	}

	day.Pay = payMinutes.Div(minutesPerHour)
	return day, payMinutes, nil
}

// RestHours is the rest credit for a shift of the given length: half an hour
// per started four-hour block.
func RestHours(minutes int) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero
	}
	blocks := (minutes + restBlockLength - 1) / restBlockLength
	return restPerBlock.Mul(decimal.NewFromInt(int64(blocks)))
}

// OvertimePay folds overtime hours over the ordered tiers. Each tier takes up
// to its band at hourly_rate*tier_rate; the last tier takes the remainder.
func OvertimePay(overtime decimal.Decimal, rates RateConfig) decimal.Decimal {
	pay := decimal.Zero
	remaining := overtime
	last := len(rates.Tiers) - 1

	for i, tier := range rates.Tiers {
		if !remaining.IsPositive() {
			break
		}
		band := remaining
		if i < last && band.GreaterThan(tier.Hours) {
			band = tier.Hours
		}
		pay = pay.Add(band.Mul(rates.HourlyRate).Mul(tier.Rate))
		remaining = remaining.Sub(band)
	}
	return pay
}
