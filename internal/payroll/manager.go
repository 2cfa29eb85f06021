package payroll

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/username/shift-payroll/internal/calendar"
	"github.com/username/shift-payroll/internal/config"
	"github.com/username/shift-payroll/internal/gcal"
	"github.com/username/shift-payroll/internal/shift"
	"github.com/username/shift-payroll/internal/store"
	"github.com/username/shift-payroll/internal/wage"
	"github.com/username/shift-payroll/pkg/dateutil"
)

const scheduleSuffix = "_shift.json"

var (
	// ErrScheduleNotFound is returned when no schedule file exists for a request
	ErrScheduleNotFound = errors.New("schedule file not found")
	// ErrNoHistory is returned by history operations when no store is configured
	ErrNoHistory = errors.New("run history is not configured")
)

// EventCreator creates calendar events; *gcal.Client implements it
type EventCreator interface {
	CreateEvent(ctx context.Context, event gcal.Event) (*gcal.CreatedEvent, error)
}

// Manager ties the input files, the wage engine and the collaborators together
type Manager struct {
	config    *config.Config
	calc      *wage.Cache
	holidays  calendar.Source
	store     *store.Store
	events    EventCreator
	syncState *SyncStateManager
	logger    *zap.Logger
}

// NewManager creates a new payroll manager. holidays, st, events and syncState
// may be nil: no holidays apply, history is unavailable, events cannot be
// created, and every sync starts from scratch respectively.
func NewManager(
	cfg *config.Config,
	calc *wage.Cache,
	holidays calendar.Source,
	st *store.Store,
	events EventCreator,
	syncState *SyncStateManager,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		config:    cfg,
		calc:      calc,
		holidays:  holidays,
		store:     st,
		events:    events,
		syncState: syncState,
		logger:    logger,
	}
}

// Inputs are the loaded files behind one computation
type Inputs struct {
	ScheduleFile string
	Schedule     *shift.Schedule
	Catalog      *shift.Catalog
	Holidays     *calendar.HolidaySet
}

// MonthReport is the outcome of ComputeMonth
type MonthReport struct {
	Month        dateutil.Month
	ScheduleFile string
	Rates        wage.RateConfig
	Result       *wage.Result
	Holidays     *calendar.HolidaySet
	RunID        string // set when the run was saved
}

// HolidayName returns the holiday name for a computed day, or ""
func (r *MonthReport) HolidayName(day wage.DayResult) string {
	return r.Holidays.Name(day.Date)
}

// SyncResult summarizes an event sync
type SyncResult struct {
	ScheduleFile string
	Events       []gcal.Event // created, or planned on a dry run
	Created      int
	Skipped      int
	DryRun       bool
}

// ScheduleFileFor returns the schedule file of month, {dir}/{YYYY-MM}_shift.json
func (m *Manager) ScheduleFileFor(month dateutil.Month) (string, error) {
	path := m.schedulePath(month)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no schedule for %s (expected %s)", ErrScheduleNotFound, month, path)
		}
		return "", fmt.Errorf("failed to access schedule file: %w", err)
	}
	return path, nil
}

func (m *Manager) schedulePath(month dateutil.Month) string {
	return filepath.Join(m.config.Data.Dir, month.String()+scheduleSuffix)
}

// LatestScheduleFile returns the most recently modified schedule file
func (m *Manager) LatestScheduleFile() (string, error) {
	matches, err := filepath.Glob(filepath.Join(m.config.Data.Dir, "*"+scheduleSuffix))
	if err != nil {
		return "", fmt.Errorf("failed to list schedule files: %w", err)
	}

	var (
		latest    string
		latestMod int64
	)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		mod := info.ModTime().UnixNano()
		if latest == "" || mod > latestMod || (mod == latestMod && path > latest) {
			latest, latestMod = path, mod
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w: no *%s in %s", ErrScheduleNotFound, scheduleSuffix, m.config.Data.Dir)
	}
	return latest, nil
}

// ImportSchedule writes the schedule of month from a whitespace separated code
// string, the first code being day 1. An existing file is kept unless force is set.
func (m *Manager) ImportSchedule(month dateutil.Month, codes string, force bool) (string, *shift.Schedule, error) {
	schedule, err := shift.FromCodes(month, strings.Fields(codes))
	if err != nil {
		return "", nil, err
	}

	path := m.schedulePath(month)
	if err := schedule.Save(path, force); err != nil {
		return "", nil, err
	}

	m.logger.Info("Schedule imported",
		zap.String("month", month.String()),
		zap.String("file", path),
		zap.Int("days", schedule.Len()),
		zap.Bool("overwrite", force))

	return path, schedule, nil
}

// LoadInputs reads the catalog, the schedule at scheduleFile and the holidays
// of every year the schedule touches
func (m *Manager) LoadInputs(ctx context.Context, scheduleFile string) (*Inputs, error) {
	schedule, catalog, err := m.loadScheduleAndCatalog(scheduleFile)
	if err != nil {
		return nil, err
	}
	if err := schedule.Validate(catalog); err != nil {
		return nil, fmt.Errorf("%s: %w", scheduleFile, err)
	}

	holidays := calendar.NewHolidaySet()
	if m.holidays != nil {
		holidays, err = calendar.ForYears(ctx, m.holidays, scheduleYears(schedule))
		if err != nil {
			return nil, fmt.Errorf("failed to load holidays: %w", err)
		}
	}

	return &Inputs{
		ScheduleFile: scheduleFile,
		Schedule:     schedule,
		Catalog:      catalog,
		Holidays:     holidays,
	}, nil
}

func (m *Manager) loadScheduleAndCatalog(scheduleFile string) (*shift.Schedule, *shift.Catalog, error) {
	catalog, err := shift.LoadCatalog(m.config.Data.ShiftTypePath())
	if err != nil {
		return nil, nil, err
	}

	schedule, err := shift.LoadSchedule(scheduleFile)
	if err != nil {
		return nil, nil, err
	}

	m.logger.Debug("Inputs loaded",
		zap.String("schedule", scheduleFile),
		zap.Int("days", schedule.Len()),
		zap.Int("shift_types", catalog.Len()))

	return schedule, catalog, nil
}

func datesOutside(schedule *shift.Schedule, month dateutil.Month) []string {
	var outside []string
	for _, e := range schedule.Entries() {
		if !month.Contains(e.Date) {
			outside = append(outside, dateutil.DateKey(e.Date))
		}
	}
	return outside
}

func scheduleYears(schedule *shift.Schedule) []int {
	seen := make(map[int]bool)
	var years []int
	for _, e := range schedule.Entries() {
		if y := e.Date.Year(); !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// ComputeMonth computes the pay of month from its schedule file and, when save
// is set, records the run in the history store
func (m *Manager) ComputeMonth(ctx context.Context, month dateutil.Month, save bool) (*MonthReport, error) {
	path, err := m.ScheduleFileFor(month)
	if err != nil {
		return nil, err
	}
	if save && m.store == nil {
		return nil, ErrNoHistory
	}

	rates, err := m.config.Wage.RateConfig()
	if err != nil {
		return nil, err
	}

	m.logger.Info("Starting payroll computation",
		zap.String("month", month.String()),
		zap.String("schedule", path),
		zap.Stringer("rates", rates))

	in, err := m.LoadInputs(ctx, path)
	if err != nil {
		return nil, err
	}
	if outside := datesOutside(in.Schedule, month); len(outside) > 0 {
		m.logger.Warn("Schedule has dates outside its month",
			zap.String("month", month.String()),
			zap.String("schedule", path),
			zap.Strings("dates", outside))
	}

	result, err := m.calc.Compute(in.Schedule, in.Catalog, in.Holidays, rates)
	if err != nil {
		return nil, err
	}

	report := &MonthReport{
		Month:        month,
		ScheduleFile: path,
		Rates:        rates,
		Result:       result,
		Holidays:     in.Holidays,
	}

	m.logger.Info("Payroll computed",
		zap.String("month", month.String()),
		zap.String("total_hours", result.TotalHours.StringFixed(2)),
		zap.String("total_wage", result.TotalWage.StringFixed(2)),
		zap.Int("worked_days", result.WorkedDays()),
		zap.Int("holiday_days", result.HolidayDays))

	if save {
		run := store.NewRun(month.String(), path,
			wage.Fingerprint(in.Schedule, in.Catalog, in.Holidays, rates), result)
		if err := m.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		report.RunID = run.ID

		m.logger.Info("Payroll run saved",
			zap.String("run_id", run.ID),
			zap.String("fingerprint", run.Fingerprint))
	}

	return report, nil
}

// SyncEvents creates one calendar event per working day of scheduleFile.
// Events recorded in the sync state are skipped unless force is set; a dry
// run only plans the events.
func (m *Manager) SyncEvents(ctx context.Context, scheduleFile string, dryRun, force bool) (*SyncResult, error) {
	schedule, catalog, err := m.loadScheduleAndCatalog(scheduleFile)
	if err != nil {
		return nil, err
	}

	events, err := gcal.BuildEvents(schedule, catalog, gcal.EventOptions{
		TimeZone:  m.config.Calendar.TimeZone,
		Location:  m.config.Calendar.Location,
		Workplace: m.config.Calendar.Workplace,
	})
	if err != nil {
		return nil, err
	}
	if !dryRun && m.events == nil {
		return nil, fmt.Errorf("calendar client is not configured")
	}

	keys := eventKeys(schedule)
	name := filepath.Base(scheduleFile)
	if force && !dryRun && m.syncState != nil {
		m.syncState.Forget(name)
	}

	recorded := 0
	if m.syncState != nil {
		recorded = m.syncState.SyncedEvents(name)
	}

	m.logger.Info("Starting event sync",
		zap.String("schedule", scheduleFile),
		zap.Int("events", len(events)),
		zap.Int("already_recorded", recorded),
		zap.Bool("dry_run", dryRun))

	result := &SyncResult{ScheduleFile: scheduleFile, DryRun: dryRun}

	for i, event := range events {
		if !force && m.syncState != nil && m.syncState.IsSynced(name, keys[i]) {
			result.Skipped++
			continue
		}

		if dryRun {
			result.Events = append(result.Events, event)
			continue
		}

		created, err := m.events.CreateEvent(ctx, event)
		if err != nil {
			m.logger.Error("Failed to create event",
				zap.String("summary", event.Summary),
				zap.Error(err))
			m.saveSyncState()
			return result, err
		}

		result.Events = append(result.Events, event)
		result.Created++
		if m.syncState != nil {
			m.syncState.MarkSynced(name, keys[i], created.ID)
		}
	}

	if !dryRun {
		m.saveSyncState()
	}

	m.logger.Info("Event sync completed",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Bool("dry_run", dryRun))

	return result, nil
}

func (m *Manager) saveSyncState() {
	if m.syncState == nil {
		return
	}
	if err := m.syncState.Save(); err != nil {
		m.logger.Warn("Failed to save sync state", zap.Error(err))
	}
}

// eventKeys lists "YYYY-MM-DD/CODE" for every working day, matching the
// order of gcal.BuildEvents
func eventKeys(schedule *shift.Schedule) []string {
	var keys []string
	for _, e := range schedule.Entries() {
		if e.Code.IsRest() {
			continue
		}
		keys = append(keys, dateutil.DateKey(e.Date)+"/"+string(e.Code))
	}
	return keys
}

// History lists saved runs, newest first
func (m *Manager) History(ctx context.Context, month string, limit int) ([]store.Run, error) {
	if m.store == nil {
		return nil, ErrNoHistory
	}
	return m.store.ListRuns(ctx, month, limit)
}

// Run loads one saved run with its days
func (m *Manager) Run(ctx context.Context, id string) (*store.Run, error) {
	if m.store == nil {
		return nil, ErrNoHistory
	}
	return m.store.GetRun(ctx, id)
}
