package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/username/shift-payroll/internal/calendar"
	"github.com/username/shift-payroll/internal/config"
	"github.com/username/shift-payroll/internal/gcal"
	"github.com/username/shift-payroll/internal/shift"
	"github.com/username/shift-payroll/internal/store"
	"github.com/username/shift-payroll/internal/wage"
	"github.com/username/shift-payroll/pkg/dateutil"
)

const testShiftTypes = `{
	"C07": {"start_time": "07:00", "end_time": "19:00"},
	"A02": {"start_time": "08:00", "end_time": "16:00"}
}`

type fakeCreator struct {
	mu     sync.Mutex
	events []gcal.Event
	failAt int // 1-based call that fails; 0 never
}

func (f *fakeCreator) CreateEvent(ctx context.Context, event gcal.Event) (*gcal.CreatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAt > 0 && len(f.events)+1 == f.failAt {
		return nil, errors.New("calendar unavailable")
	}
	f.events = append(f.events, event)
	return &gcal.CreatedEvent{ID: fmt.Sprintf("evt%d", len(f.events)), Status: "confirmed"}, nil
}

type countingSource struct {
	calls int32
}

func (c *countingSource) Holidays(ctx context.Context, year int) (*calendar.HolidaySet, error) {
	atomic.AddInt32(&c.calls, 1)
	return calendar.NewHolidaySet(), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Data: config.DataConfig{
			Dir:           dir,
			ShiftTypeFile: "shift_type.json",
			HolidayFile:   "holiday.json",
		},
		Wage: config.WageConfig{
			HourlyRate:         190,
			BaseHours:          8,
			OvertimeHoursLimit: 2,
			OvertimeRate1:      1.33,
			OvertimeRate2:      1.66,
			HolidayRate:        2,
		},
		Calendar: config.CalendarConfig{
			TimeZone:  "Asia/Taipei",
			Location:  "Taipei",
			Workplace: "Ward 5",
			StateFile: filepath.Join(dir, "event_state.json"),
		},
	}
}

type fixture struct {
	dir     string
	cfg     *config.Config
	store   *store.Store
	events  *fakeCreator
	state   *SyncStateManager
	manager *Manager
}

func newFixture(t *testing.T, holidays string) *fixture {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "shift_type.json"), testShiftTypes)
	writeFile(t, filepath.Join(dir, "holiday.json"), holidays)

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zap.NewNop()
	cfg := testConfig(dir)
	state := NewSyncStateManager(cfg.Calendar.StateFile, logger)
	require.NoError(t, state.Load())

	events := &fakeCreator{}
	m := NewManager(cfg,
		wage.NewCache(wage.NewEngine(logger), logger),
		calendar.NewFileSource(cfg.Data.HolidayPath(), logger),
		st, events, state, logger)

	return &fixture{dir: dir, cfg: cfg, store: st, events: events, state: state, manager: m}
}

func february(t *testing.T) dateutil.Month {
	t.Helper()
	month, err := dateutil.ParseMonth("2024-02")
	require.NoError(t, err)
	return month
}

func TestManager_ImportSchedule(t *testing.T) {
	f := newFixture(t, `[]`)
	month := february(t)

	path, schedule, err := f.manager.ImportSchedule(month, "C07  A02\tX\n", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "2024-02_shift.json"), path)
	assert.Equal(t, 3, schedule.Len())

	loaded, err := shift.LoadSchedule(path)
	require.NoError(t, err)
	entries := loaded.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "2024-02-01", dateutil.DateKey(entries[0].Date))
	assert.Equal(t, shift.Code("C07"), entries[0].Code)
	assert.Equal(t, shift.Rest, entries[2].Code)

	_, _, err = f.manager.ImportSchedule(month, "A02", false)
	assert.ErrorIs(t, err, shift.ErrScheduleExists)

	_, schedule, err = f.manager.ImportSchedule(month, "A02", true)
	require.NoError(t, err)
	assert.Equal(t, 1, schedule.Len())
}

func TestManager_ImportSchedule_TooManyCodes(t *testing.T) {
	f := newFixture(t, `[]`)

	codes := ""
	for i := 0; i < 30; i++ {
		codes += "A02 "
	}

	_, _, err := f.manager.ImportSchedule(february(t), codes, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has only 29 days")

	_, err = os.Stat(filepath.Join(f.dir, "2024-02_shift.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_ScheduleFileFor_Missing(t *testing.T) {
	f := newFixture(t, `[]`)

	_, err := f.manager.ScheduleFileFor(february(t))
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	assert.Contains(t, err.Error(), "2024-02_shift.json")
}

func TestManager_LatestScheduleFile(t *testing.T) {
	f := newFixture(t, `[]`)

	_, err := f.manager.LatestScheduleFile()
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	older := filepath.Join(f.dir, "2024-03_shift.json")
	newer := filepath.Join(f.dir, "2024-01_shift.json")
	writeFile(t, older, `{"2024-03-01": "A02"}`)
	writeFile(t, newer, `{"2024-01-01": "A02"}`)
	writeFile(t, filepath.Join(f.dir, "notes.json"), `{}`)

	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	latest, err := f.manager.LatestScheduleFile()
	require.NoError(t, err)
	assert.Equal(t, newer, latest)
}

func TestManager_ComputeMonth(t *testing.T) {
	tests := []struct {
		name         string
		holidays     string
		codes        string
		wantHours    string
		wantWage     string
		wantHolidays int
	}{
		{
			name:      "Regular days",
			holidays:  `[]`,
			codes:     "C07 A02 X",
			wantHours: "20.00",
			wantWage:  "3986.20",
		},
		{
			name:         "Holiday on day two",
			holidays:     `{"2024-02-02": "Lunar New Year"}`,
			codes:        "C07 A02 X",
			wantHours:    "20.00",
			wantWage:     "5696.20",
			wantHolidays: 1,
		},
		{
			name:      "Only rest days",
			holidays:  `[]`,
			codes:     "X X",
			wantHours: "0.00",
			wantWage:  "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.holidays)
			month := february(t)

			_, _, err := f.manager.ImportSchedule(month, tt.codes, false)
			require.NoError(t, err)

			report, err := f.manager.ComputeMonth(context.Background(), month, false)
			require.NoError(t, err)

			assert.Equal(t, tt.wantHours, report.Result.TotalHours.StringFixed(2))
			assert.Equal(t, tt.wantWage, report.Result.TotalWage.StringFixed(2))
			assert.Equal(t, tt.wantHolidays, report.Result.HolidayDays)
			assert.Empty(t, report.RunID)
		})
	}
}

func TestManager_ComputeMonth_HolidayName(t *testing.T) {
	f := newFixture(t, `{"2024-02-02": "Lunar New Year"}`)
	month := february(t)

	_, _, err := f.manager.ImportSchedule(month, "C07 A02", false)
	require.NoError(t, err)

	report, err := f.manager.ComputeMonth(context.Background(), month, false)
	require.NoError(t, err)
	require.Len(t, report.Result.Days, 2)

	assert.Equal(t, "", report.HolidayName(report.Result.Days[0]))
	assert.Equal(t, "Lunar New Year", report.HolidayName(report.Result.Days[1]))
}

func TestManager_ComputeMonth_UnknownCode(t *testing.T) {
	f := newFixture(t, `[]`)
	month := february(t)

	_, _, err := f.manager.ImportSchedule(month, "C07 Z99", false)
	require.NoError(t, err)

	report, err := f.manager.ComputeMonth(context.Background(), month, true)
	assert.ErrorIs(t, err, shift.ErrUnknownShiftCode)
	assert.Nil(t, report)

	runs, err := f.manager.History(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestManager_ComputeMonth_InvalidRates(t *testing.T) {
	f := newFixture(t, `[]`)
	month := february(t)
	f.cfg.Wage.BaseHours = 0

	_, _, err := f.manager.ImportSchedule(month, "C07", false)
	require.NoError(t, err)

	_, err = f.manager.ComputeMonth(context.Background(), month, false)
	assert.ErrorIs(t, err, wage.ErrConfig)
}

func TestManager_ComputeMonth_Save(t *testing.T) {
	f := newFixture(t, `[]`)
	month := february(t)
	ctx := context.Background()

	_, _, err := f.manager.ImportSchedule(month, "C07 A02 X", false)
	require.NoError(t, err)

	report, err := f.manager.ComputeMonth(ctx, month, true)
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	runs, err := f.manager.History(ctx, "2024-02", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, "3986.20", runs[0].TotalWage.StringFixed(2))
	assert.Equal(t, 2, runs[0].WorkedDays)
	assert.Equal(t, 1, runs[0].RestDays)
	assert.NotEmpty(t, runs[0].Fingerprint)

	run, err := f.manager.Run(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, run.Days, 2)
	assert.Equal(t, "2656.2", run.Days[0].Pay.String())
}

func TestManager_ComputeMonth_SaveWithoutStore(t *testing.T) {
	f := newFixture(t, `[]`)
	month := february(t)
	f.manager.store = nil

	_, _, err := f.manager.ImportSchedule(month, "C07", false)
	require.NoError(t, err)

	_, err = f.manager.ComputeMonth(context.Background(), month, true)
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestManager_SyncEvents(t *testing.T) {
	f := newFixture(t, `[]`)
	ctx := context.Background()

	path, _, err := f.manager.ImportSchedule(february(t), "C07 A02 X C07", false)
	require.NoError(t, err)

	result, err := f.manager.SyncEvents(ctx, path, false, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 0, result.Skipped)

	require.Len(t, f.events.events, 3)
	assert.Equal(t, "Workday C07 1st", f.events.events[0].Summary)
	assert.Equal(t, "Workday A02 2nd", f.events.events[1].Summary)
	assert.Equal(t, "Workday C07 1st", f.events.events[2].Summary)
	assert.Equal(t, "2024-02-01T07:00:00", f.events.events[0].Start.DateTime)
	assert.Equal(t, "Shift: A02, Location: Ward 5", f.events.events[1].Description)
	assert.Equal(t, "Taipei", f.events.events[1].Location)

	// second run finds everything recorded
	result, err = f.manager.SyncEvents(ctx, path, false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, f.events.events, 3)

	// the state survives a reload
	reloaded := NewSyncStateManager(f.cfg.Calendar.StateFile, zap.NewNop())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 3, reloaded.SyncedEvents("2024-02_shift.json"))

	result, err = f.manager.SyncEvents(ctx, path, false, true)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Len(t, f.events.events, 6)
}

func TestManager_SyncEvents_DryRun(t *testing.T) {
	f := newFixture(t, `[]`)

	path, _, err := f.manager.ImportSchedule(february(t), "C07 X A02", false)
	require.NoError(t, err)

	result, err := f.manager.SyncEvents(context.Background(), path, true, false)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, f.events.events)

	_, err = os.Stat(f.cfg.Calendar.StateFile)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_SyncEvents_PartialFailure(t *testing.T) {
	f := newFixture(t, `[]`)
	f.events.failAt = 2
	ctx := context.Background()

	path, _, err := f.manager.ImportSchedule(february(t), "C07 A02 C07", false)
	require.NoError(t, err)

	result, err := f.manager.SyncEvents(ctx, path, false, false)
	require.Error(t, err)
	assert.Equal(t, 1, result.Created)

	// the retry resumes after the event that was created
	f.events.failAt = 0
	result, err = f.manager.SyncEvents(ctx, path, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Created)
}

func TestManager_SyncEvents_UnknownCode(t *testing.T) {
	f := newFixture(t, `[]`)

	path, _, err := f.manager.ImportSchedule(february(t), "C07 Z99", false)
	require.NoError(t, err)

	_, err = f.manager.SyncEvents(context.Background(), path, false, false)
	assert.ErrorIs(t, err, shift.ErrUnknownShiftCode)
	assert.Empty(t, f.events.events)
}

func TestManager_SyncEvents_CalendarAPI(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var event gcal.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		assert.Equal(t, "Asia/Taipei", event.Start.TimeZone)

		fmt.Fprintf(w, `{"id": "evt%d", "status": "confirmed"}`, n)
	}))
	defer server.Close()

	f := newFixture(t, `[]`)
	client := gcal.NewClient(server.URL, "", gcal.StaticToken("secret"), zap.NewNop())
	f.manager.events = client

	path, _, err := f.manager.ImportSchedule(february(t), "C07 A02", false)
	require.NoError(t, err)

	result, err := f.manager.SyncEvents(context.Background(), path, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestManager_LoadInputs_UnknownCodeBeforeHolidays(t *testing.T) {
	f := newFixture(t, `[]`)
	src := &countingSource{}
	f.manager.holidays = src

	path, _, err := f.manager.ImportSchedule(february(t), "C07 Z99", false)
	require.NoError(t, err)

	_, err = f.manager.LoadInputs(context.Background(), path)
	assert.ErrorIs(t, err, shift.ErrUnknownShiftCode)
	assert.Contains(t, err.Error(), "2024-02-02")
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
}

func TestManager_ComputeMonth_WarnsOnDatesOutsideMonth(t *testing.T) {
	f := newFixture(t, `[]`)
	core, logs := observer.New(zap.WarnLevel)
	f.manager.logger = zap.New(core)

	writeFile(t, filepath.Join(f.dir, "2024-02_shift.json"),
		`{"2024-02-01": "A02", "2024-03-01": "A02"}`)

	report, err := f.manager.ComputeMonth(context.Background(), february(t), false)
	require.NoError(t, err)
	assert.Equal(t, "2660.00", report.Result.TotalWage.StringFixed(2))

	warnings := logs.FilterMessage("Schedule has dates outside its month").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, []interface{}{"2024-03-01"}, warnings[0].ContextMap()["dates"])
}
