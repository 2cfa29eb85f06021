package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/username/shift-payroll/internal/wage"
)

// Format renders the totals as two lines with two decimals each
func Format(result *wage.Result) string {
	return fmt.Sprintf("Total duty hours: %s\nTotal salary: %s",
		result.TotalHours.StringFixed(2),
		result.TotalWage.StringFixed(2))
}

// FormatDetailed renders a per-day breakdown followed by the totals.
// holidayName may be nil.
func FormatDetailed(result *wage.Result, holidayName func(wage.DayResult) string) string {
	var b strings.Builder

	b.WriteString("  Date       | Shift | Duty   | Rest  | Net    | OT  | Pay        | Note\n")
	b.WriteString("-------------+-------+--------+-------+--------+-----+------------+----------------\n")

	for _, d := range result.Days {
		note := ""
		if d.Holiday {
			note = "holiday"
			if holidayName != nil {
				if name := holidayName(d); name != "" {
					note = "holiday: " + name
				}
			}
		}
		fmt.Fprintf(&b, "  %s | %-5s | %6s | %5s | %6s | %3s | %10s | %s\n",
			d.Date.Format("2006-01-02"),
			string(d.Code),
			d.DutyHours.StringFixed(2),
			d.RestHours.StringFixed(1),
			d.NetHours.StringFixed(2),
			d.OvertimeHours.String(),
			d.Pay.StringFixed(2),
			note)
	}

	b.WriteString("═══════════════════════════════════════════════════════\n")
	fmt.Fprintf(&b, "  Worked days:  %d (%d on holidays)\n", result.WorkedDays(), result.HolidayDays)
	fmt.Fprintf(&b, "  Rest days:    %d\n", result.RestDays)
	b.WriteString(Format(result))
	return b.String()
}

// Row is one CSV line of the per-day breakdown
type Row struct {
	Date          string `csv:"date"`
	Shift         string `csv:"shift"`
	Holiday       bool   `csv:"holiday"`
	DutyHours     string `csv:"duty_hours"`
	RestHours     string `csv:"rest_hours"`
	NetHours      string `csv:"net_hours"`
	OvertimeHours string `csv:"overtime_hours"`
	Pay           string `csv:"pay"`
}

type Rows []Row

// ToRows converts the breakdown to CSV rows with fixed two decimal amounts
func ToRows(result *wage.Result) Rows {
	rows := make(Rows, 0, len(result.Days))
	for _, d := range result.Days {
		rows = append(rows, Row{
			Date:          d.Date.Format("2006-01-02"),
			Shift:         string(d.Code),
			Holiday:       d.Holiday,
			DutyHours:     d.DutyHours.StringFixed(2),
			RestHours:     d.RestHours.StringFixed(2),
			NetHours:      d.NetHours.StringFixed(2),
			OvertimeHours: d.OvertimeHours.StringFixed(2),
			Pay:           d.Pay.StringFixed(2),
		})
	}
	return rows
}

// WriteCSV writes the breakdown as CSV with a header line
func (rows Rows) WriteCSV(w io.Writer) error {
	return gocsv.Marshal(rows, w)
}

// WriteCSVFile creates path and writes the breakdown of result into it
func WriteCSVFile(path string, result *wage.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	return writeAndClose(file, ToRows(result))
}

// writeAndClose always closes wc and reports a failed close as an error
func writeAndClose(wc io.WriteCloser, rows Rows) error {
	if err := rows.WriteCSV(wc); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close CSV file: %w", err)
	}
	return nil
}
