/*
Package store keeps a history of payroll runs in SQLite.

KEY TABLES:

	payroll_runs: one row per saved computation (month, totals, input fingerprint)
	payroll_days: the per-day breakdown of a run

Amounts are stored as decimal strings so that a reloaded run renders exactly
as it was computed. Runs are append-only.

USAGE:

	st, err := store.New("./data/payroll.db")
	if err != nil {
	    return err
	}
	defer st.Close()
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/username/shift-payroll/internal/shift"
	"github.com/username/shift-payroll/internal/wage"
)

// ErrRunNotFound is returned by GetRun for an unknown ID
var ErrRunNotFound = errors.New("payroll run not found")

// fixed width so that stored timestamps sort as text
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is a saved payroll computation
type Run struct {
	ID           string
	Month        string
	ScheduleFile string
	Fingerprint  string
	TotalHours   decimal.Decimal
	TotalWage    decimal.Decimal
	WorkedDays   int
	RestDays     int
	HolidayDays  int
	CreatedAt    time.Time
	Days         []wage.DayResult
}

// NewRun captures result for month; the ID is generated
func NewRun(month, scheduleFile, fingerprint string, result *wage.Result) Run {
	days := make([]wage.DayResult, len(result.Days))
	copy(days, result.Days)

	return Run{
		ID:           uuid.New().String(),
		Month:        month,
		ScheduleFile: scheduleFile,
		Fingerprint:  fingerprint,
		TotalHours:   result.TotalHours,
		TotalWage:    result.TotalWage,
		WorkedDays:   result.WorkedDays(),
		RestDays:     result.RestDays,
		HolidayDays:  result.HolidayDays,
		CreatedAt:    time.Now().UTC(),
		Days:         days,
	}
}

// Result rebuilds the engine result of a loaded run
func (r Run) Result() *wage.Result {
	return &wage.Result{
		TotalHours:  r.TotalHours,
		TotalWage:   r.TotalWage,
		Days:        r.Days,
		RestDays:    r.RestDays,
		HolidayDays: r.HolidayDays,
	}
}

// Store persists payroll runs
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL,
		schedule_file TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		total_wage TEXT NOT NULL,
		worked_days INTEGER NOT NULL,
		rest_days INTEGER NOT NULL,
		holiday_days INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_runs_month
		ON payroll_runs(month);

	CREATE TABLE IF NOT EXISTS payroll_days (
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		code TEXT NOT NULL,
		holiday INTEGER NOT NULL,
		duty_hours TEXT NOT NULL,
		rest_hours TEXT NOT NULL,
		net_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		pay TEXT NOT NULL,
		PRIMARY KEY (run_id, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a run and its days atomically
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO payroll_runs (id, month, schedule_file, fingerprint, total_hours, total_wage,
			worked_days, rest_days, holiday_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Month, run.ScheduleFile, run.Fingerprint,
		run.TotalHours.String(), run.TotalWage.String(),
		run.WorkedDays, run.RestDays, run.HolidayDays,
		run.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, d := range run.Days {
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO payroll_days (run_id, date, code, holiday, duty_hours, rest_hours,
				net_hours, overtime_hours, pay)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, d.Date.Format("2006-01-02"), string(d.Code), d.Holiday,
			d.DutyHours.String(), d.RestHours.String(), d.NetHours.String(),
			d.OvertimeHours.String(), d.Pay.String())
		if err != nil {
			return fmt.Errorf("failed to insert day %s: %w", d.Date.Format("2006-01-02"), err)
		}
	}

	return sqlTx.Commit()
}

// ListRuns returns the most recent runs first, without their days.
// A non-empty month restricts the list to that month.
func (s *Store) ListRuns(ctx context.Context, month string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, month, schedule_file, fingerprint, total_hours, total_wage,
		worked_days, rest_days, holiday_days, created_at FROM payroll_runs`
	var args []any
	if month != "" {
		query += ` WHERE month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads one run with its days in chronological order
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, month, schedule_file, fingerprint, total_hours,
		total_wage, worked_days, rest_days, holiday_days, created_at
		FROM payroll_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, code, holiday, duty_hours, rest_hours,
		net_hours, overtime_hours, pay FROM payroll_days WHERE run_id = ? ORDER BY date`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d                                  wage.DayResult
			date, code                         string
			duty, rest, net, overtime, payText string
		)
		if err := rows.Scan(&date, &code, &d.Holiday, &duty, &rest, &net, &overtime, &payText); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}

		if d.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
		}
		d.Code = shift.Code(code)

		values, err := parseDecimals(duty, rest, net, overtime, payText)
		if err != nil {
			return nil, err
		}
		d.DutyHours, d.RestHours, d.NetHours, d.OvertimeHours, d.Pay = values[0], values[1], values[2], values[3], values[4]

		run.Days = append(run.Days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run             Run
		hours, wageText string
		createdAt       string
	)
	err := sc.Scan(&run.ID, &run.Month, &run.ScheduleFile, &run.Fingerprint, &hours, &wageText,
		&run.WorkedDays, &run.RestDays, &run.HolidayDays, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	values, err := parseDecimals(hours, wageText)
	if err != nil {
		return Run{}, err
	}
	run.TotalHours, run.TotalWage = values[0], values[1]

	if run.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return Run{}, fmt.Errorf("invalid stored timestamp %q: %w", createdAt, err)
	}
	return run, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}
