package wage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/username/shift-payroll/internal/calendar"
	"github.com/username/shift-payroll/internal/shift"
)

func day(d int) time.Time {
	return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC)
}

func hm(h, m int) shift.TimeOfDay {
	return shift.TimeOfDay(h*60 + m)
}

func defaultRates() RateConfig {
	return NewRateConfig(190, 8, 2, 1.33, 1.66, 2)
}

func testCatalog(t *testing.T) *shift.Catalog {
	t.Helper()
	catalog, err := shift.NewCatalog(map[shift.Code]shift.Definition{
		"C07": {Start: hm(7, 0), End: hm(19, 0)},  // 12h
		"A02": {Start: hm(8, 0), End: hm(16, 0)},  // 8h
		"B07": {Start: hm(7, 0), End: hm(17, 30)}, // 10.5h
		"D01": {Start: hm(9, 0), End: hm(12, 0)},  // 3h
		"N00": {Start: hm(22, 0), End: hm(6, 0)},  // wraps midnight
		"Z00": {Start: hm(9, 0), End: hm(9, 0)},   // empty
	})
	require.NoError(t, err)
	return catalog
}

func schedule(t *testing.T, entries ...shift.Entry) *shift.Schedule {
	t.Helper()
	s, err := shift.NewSchedule(entries)
	require.NoError(t, err)
	return s
}

func newEngine() *Engine {
	return NewEngine(zap.NewNop())
}

func TestCompute_TwelveHourShift_TieredOvertime(t *testing.T) {
	s := schedule(t, shift.Entry{Date: day(1), Code: "C07"})

	result, err := newEngine().Compute(s, testCatalog(t), calendar.NewHolidaySet(), defaultRates())
	require.NoError(t, err)

	assert.Equal(t, "12.00", result.TotalHours.StringFixed(2))
	assert.Equal(t, "2656.20", result.TotalWage.StringFixed(2))

	require.Len(t, result.Days, 1)
	d := result.Days[0]
	assert.Equal(t, "1.5", d.RestHours.String())
	assert.Equal(t, "10.5", d.NetHours.String())
	assert.Equal(t, "4", d.OvertimeHours.String())
	assert.False(t, d.Holiday)
}

func TestCompute_TwelveHourShift_Holiday(t *testing.T) {
	s := schedule(t, shift.Entry{Date: day(1), Code: "C07"})
	holidays := calendar.NewHolidaySet(calendar.Holiday{Date: day(1)})

	result, err := newEngine().Compute(s, testCatalog(t), holidays, defaultRates())
	require.NoError(t, err)

	assert.Equal(t, "12.00", result.TotalHours.StringFixed(2))
	assert.Equal(t, "4560.00", result.TotalWage.StringFixed(2))
	assert.Equal(t, 1, result.HolidayDays)
	assert.True(t, result.Days[0].Holiday)
}

func TestCompute_RestDaysOnly(t *testing.T) {
	s := schedule(t, shift.Entry{Date: day(2), Code: shift.Rest})

	result, err := newEngine().Compute(s, testCatalog(t), calendar.NewHolidaySet(), defaultRates())
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.TotalHours.StringFixed(2))
	assert.Equal(t, "0.00", result.TotalWage.StringFixed(2))
	assert.Equal(t, 1, result.RestDays)
	assert.Empty(t, result.Days)
}

func TestCompute_UnknownCode_NoPartialResult(t *testing.T) {
	s := schedule(t,
		shift.Entry{Date: day(1), Code: "C07"},
		shift.Entry{Date: day(2), Code: "Z99"},
	)

	result, err := newEngine().Compute(s, testCatalog(t), calendar.NewHolidaySet(), defaultRates())

	require.Error(t, err)
	assert.Nil(t, result, "no partial result")
	assert.ErrorIs(t, err, ErrUnknownShiftCode)

	var dayErr *DayError
	require.ErrorAs(t, err, &dayErr)
	assert.Equal(t, shift.Code("Z99"), dayErr.Entry.Code)
	assert.Contains(t, err.Error(), "2024-02-02")
}

func TestCompute_InvalidDuration(t *testing.T) {
	for _, code := range []shift.Code{"N00", "Z00"} {
		t.Run(string(code), func(t *testing.T) {
			s := schedule(t, shift.Entry{Date: day(1), Code: code})

			_, err := newEngine().Compute(s, testCatalog(t), calendar.NewHolidaySet(), defaultRates())
			assert.ErrorIs(t, err, ErrInvalidShiftDuration)
		})
	}
}

func TestCompute_ConfigError(t *testing.T) {
	tests := []struct {
		name  string
		rates RateConfig
		field string
	}{
		{"Zero hourly rate", NewRateConfig(0, 8, 2, 1.33, 1.66, 2), "hourly_rate"},
		{"Negative base hours", NewRateConfig(190, -1, 2, 1.33, 1.66, 2), "base_hours"},
		{"Zero holiday rate", NewRateConfig(190, 8, 2, 1.33, 1.66, 0), "holiday_rate"},
		{"Zero tier rate", NewRateConfig(190, 8, 2, 0, 1.66, 2), "overtime_tiers[0].rate"},
		{"Negative limit", NewRateConfig(190, 8, -1, 1.33, 1.66, 2), "overtime_tiers[0].hours"},
		{"Zero limit", NewRateConfig(190, 8, 0, 1.33, 1.66, 2), "overtime_tiers[0].hours"},
		{"No tiers", RateConfig{HourlyRate: decimal.NewFromInt(1), BaseHours: decimal.NewFromInt(8), HolidayRate: decimal.NewFromInt(2)}, "overtime_tiers"},
	}

	s := schedule(t, shift.Entry{Date: day(1), Code: "C07"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEngine().Compute(s, testCatalog(t), nil, tt.rates)

			require.ErrorIs(t, err, ErrConfig)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCompute_ConfigErrorWithEmptySchedule(t *testing.T) {
	_, err := newEngine().Compute(nil, nil, nil, NewRateConfig(0, 8, 2, 1.33, 1.66, 2))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestCompute_TierBoundaries(t *testing.T) {
	rates := defaultRates()
	hourly := 190.0

	tests := []struct {
		name     string
		duty     shift.TimeOfDay // minutes after 06:00
		wantPay  string
		overtime string
	}{
		// duty <= base uses net hours
		{"Exactly base", hm(8, 0), "1330.00", "0"},
		// 8.5h: floor(0.5) = 0 overtime hours, pay is base only
		{"Half hour over base", hm(8, 30), "1520.00", "0"},
		// 9h: 1 overtime hour at rate 1
		{"One hour over", hm(9, 0), "1772.70", "1"},
		// 10h: overtime equals the limit, still rate 1 only
		{"At limit", hm(10, 0), "2025.40", "2"},
		// 11h: 2 at rate 1, 1 at rate 2
		{"One past limit", hm(11, 0), "2340.80", "3"},
		// 10.75h: floor(2.75) = 2
		{"Fractional overtime floors", hm(10, 45), "2025.40", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := shift.NewCatalog(map[shift.Code]shift.Definition{
				"T": {Start: hm(6, 0), End: hm(6, 0) + tt.duty},
			})
			require.NoError(t, err)

			result, err := newEngine().Compute(schedule(t, shift.Entry{Date: day(1), Code: "T"}), catalog, nil, rates)
			require.NoError(t, err)

			if got := result.TotalWage.StringFixed(2); got != tt.wantPay {
				t.Errorf("pay for %s = %v, want %v (hourly %v)", tt.duty, got, tt.wantPay, hourly)
			}
			assert.Equal(t, tt.overtime, result.Days[0].OvertimeHours.String())
		})
	}
}

func TestCompute_MultiTier(t *testing.T) {
	rates := RateConfig{
		HourlyRate: decimal.NewFromInt(100),
		BaseHours:  decimal.NewFromInt(8),
		Tiers: []Tier{
			{Hours: decimal.NewFromInt(1), Rate: decimal.NewFromFloat(1.25)},
			{Hours: decimal.NewFromInt(1), Rate: decimal.NewFromFloat(1.5)},
			{Rate: decimal.NewFromInt(2)},
		},
		HolidayRate: decimal.NewFromInt(2),
	}

	s := schedule(t, shift.Entry{Date: day(1), Code: "C07"})
	result, err := newEngine().Compute(s, testCatalog(t), nil, rates)
	require.NoError(t, err)

	// 8*100 + 1*125 + 1*150 + 2*200
	assert.Equal(t, "1475.00", result.TotalWage.StringFixed(2))
}

func TestRestHours(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0"},
		{1, "0.5"},
		{3 * 60, "0.5"},
		{4 * 60, "0.5"},
		{4*60 + 1, "1"},
		{8 * 60, "1"},
		{12 * 60, "1.5"},
		{12*60 + 30, "2"},
	}

	for _, tt := range tests {
		if got := RestHours(tt.minutes).String(); got != tt.want {
			t.Errorf("RestHours(%d) = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestRestHours_Monotonic(t *testing.T) {
	prev := decimal.Zero
	for m := 1; m <= 24*60; m++ {
		got := RestHours(m)
		if got.LessThan(prev) {
			t.Fatalf("RestHours(%d) = %v < RestHours(%d) = %v", m, got, m-1, prev)
		}
		prev = got
	}
}

func TestCompute_ShortShiftUsesNetHours(t *testing.T) {
	// For d <= base: pay = (d - ceil(d/4)*0.5) * hourly
	rates := defaultRates()
	catalog := testCatalog(t)

	for _, code := range []shift.Code{"A02", "D01"} {
		def, err := catalog.Lookup(code)
		require.NoError(t, err)

		result, err := newEngine().Compute(schedule(t, shift.Entry{Date: day(1), Code: code}), catalog, nil, rates)
		require.NoError(t, err)

		d := decimal.NewFromInt(int64(def.Minutes())).Div(decimal.NewFromInt(60))
		want := d.Sub(RestHours(def.Minutes())).Mul(rates.HourlyRate).Round(2)
		assert.True(t, want.Equal(result.TotalWage), "%s: got %s want %s", code, result.TotalWage, want)
	}
}

func TestCompute_HolidayIgnoresRestAndTiers(t *testing.T) {
	rates := defaultRates()
	catalog := testCatalog(t)
	holidays := calendar.NewHolidaySet(calendar.Holiday{Date: day(1)})

	for _, code := range []shift.Code{"A02", "B07", "C07", "D01"} {
		def, _ := catalog.Lookup(code)

		result, err := newEngine().Compute(schedule(t, shift.Entry{Date: day(1), Code: code}), catalog, holidays, rates)
		require.NoError(t, err)

		d := decimal.NewFromInt(int64(def.Minutes())).Div(decimal.NewFromInt(60))
		want := d.Mul(rates.HourlyRate).Mul(rates.HolidayRate).Round(2)
		assert.True(t, want.Equal(result.TotalWage), "%s: got %s want %s", code, result.TotalWage, want)
	}
}

func TestCompute_TotalHoursUseRawDuty(t *testing.T) {
	s := schedule(t,
		shift.Entry{Date: day(1), Code: "A02"},
		shift.Entry{Date: day(2), Code: "B07"},
		shift.Entry{Date: day(3), Code: shift.Rest},
		shift.Entry{Date: day(4), Code: "D01"},
	)

	result, err := newEngine().Compute(s, testCatalog(t), nil, defaultRates())
	require.NoError(t, err)

	assert.Equal(t, "21.50", result.TotalHours.StringFixed(2))
	assert.Equal(t, 3, result.WorkedDays())
	assert.Equal(t, 1, result.RestDays)
}

func TestCompute_OrderIndependentAndIdempotent(t *testing.T) {
	codes := []shift.Code{"C07", "A02", "B07", "D01", shift.Rest, "C07", "A02"}
	holidays := calendar.NewHolidaySet(calendar.Holiday{Date: day(3)})
	catalog := testCatalog(t)

	entries := make([]shift.Entry, len(codes))
	for i, c := range codes {
		entries[i] = shift.Entry{Date: day(i + 1), Code: c}
	}

	engine := newEngine()
	base, err := engine.Compute(schedule(t, entries...), catalog, holidays, defaultRates())
	require.NoError(t, err)

	again, err := engine.Compute(schedule(t, entries...), catalog, holidays, defaultRates())
	require.NoError(t, err)
	assert.Equal(t, base, again)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]shift.Entry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := engine.Compute(schedule(t, shuffled...), catalog, holidays, defaultRates())
		require.NoError(t, err)
		assert.True(t, base.TotalHours.Equal(got.TotalHours))
		assert.True(t, base.TotalWage.Equal(got.TotalWage))
		assert.Equal(t, base.Days, got.Days, "breakdown stays chronological")
	}
}

func TestCompute_RoundsHalfAwayFromZero(t *testing.T) {
	// 0.5h * 1 * 0.01 = 0.005 -> 0.01
	catalog, err := shift.NewCatalog(map[shift.Code]shift.Definition{
		"H": {Start: hm(9, 0), End: hm(9, 30)},
	})
	require.NoError(t, err)

	rates := NewRateConfig(1, 8, 2, 1.33, 1.66, 0.01)
	holidays := calendar.NewHolidaySet(calendar.Holiday{Date: day(1)})

	result, err := newEngine().Compute(schedule(t, shift.Entry{Date: day(1), Code: "H"}), catalog, holidays, rates)
	require.NoError(t, err)
	assert.Equal(t, "0.01", result.TotalWage.StringFixed(2))
}

func TestCompute_RoundsThirdOfHourExactly(t *testing.T) {
	// 20 minutes * 0.015 * 1 = 0.005 exactly; dividing by 60 first would leave 0.00499...
	catalog, err := shift.NewCatalog(map[shift.Code]shift.Definition{
		"S20": {Start: hm(9, 0), End: hm(9, 20)},
	})
	require.NoError(t, err)

	rates := NewRateConfig(0.015, 8, 2, 1.33, 1.66, 1)
	holidays := calendar.NewHolidaySet(calendar.Holiday{Date: day(1)})

	result, err := newEngine().Compute(schedule(t, shift.Entry{Date: day(1), Code: "S20"}), catalog, holidays, rates)
	require.NoError(t, err)
	assert.Equal(t, "0.01", result.TotalWage.StringFixed(2))
	assert.Equal(t, "0.33", result.TotalHours.StringFixed(2))

	require.Len(t, result.Days, 1)
	assert.Equal(t, "0.005", result.Days[0].Pay.String())
}

func TestCompute_ThirdsOfHoursSumExactly(t *testing.T) {
	// three 20 minute shifts are one hour, not 0.99
	catalog, err := shift.NewCatalog(map[shift.Code]shift.Definition{
		"S20": {Start: hm(9, 0), End: hm(9, 20)},
	})
	require.NoError(t, err)

	holidays := calendar.NewHolidaySet(
		calendar.Holiday{Date: day(1)}, calendar.Holiday{Date: day(2)}, calendar.Holiday{Date: day(3)})
	s := schedule(t,
		shift.Entry{Date: day(1), Code: "S20"},
		shift.Entry{Date: day(2), Code: "S20"},
		shift.Entry{Date: day(3), Code: "S20"})

	result, err := newEngine().Compute(s, catalog, holidays, NewRateConfig(190, 8, 2, 1.33, 1.66, 2))
	require.NoError(t, err)
	assert.Equal(t, "1.00", result.TotalHours.StringFixed(2))
	assert.Equal(t, "380.00", result.TotalWage.StringFixed(2))
}

func TestCompute_RestDayOnHoliday(t *testing.T) {
	s := schedule(t,
		shift.Entry{Date: day(1), Code: shift.Rest},
		shift.Entry{Date: day(2), Code: "A02"})
	holidays := calendar.NewHolidaySet(calendar.Holiday{Date: day(1), Name: "Peace Memorial Day"})

	result, err := newEngine().Compute(s, testCatalog(t), holidays, defaultRates())
	require.NoError(t, err)

	assert.Equal(t, 1, result.RestDays)
	assert.Equal(t, 0, result.HolidayDays)
	require.Len(t, result.Days, 1)
	assert.Equal(t, "8.00", result.TotalHours.StringFixed(2))
	assert.Equal(t, "1330.00", result.TotalWage.StringFixed(2))
}

func TestCompute_EmptySchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule *shift.Schedule
	}{
		{"No entries", schedule(t)},
		{"Nil schedule", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newEngine().Compute(tt.schedule, testCatalog(t), calendar.NewHolidaySet(), defaultRates())
			require.NoError(t, err)

			assert.Equal(t, "0.00", result.TotalHours.StringFixed(2))
			assert.Equal(t, "0.00", result.TotalWage.StringFixed(2))
			assert.Equal(t, 0, result.RestDays)
			assert.Empty(t, result.Days)
		})
	}
}

func TestCompute_NilCatalog(t *testing.T) {
	s := schedule(t, shift.Entry{Date: day(1), Code: "C07"})

	result, err := newEngine().Compute(s, nil, calendar.NewHolidaySet(), defaultRates())
	assert.ErrorIs(t, err, ErrUnknownShiftCode)
	assert.Nil(t, result)
}
