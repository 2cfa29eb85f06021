package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/username/shift-payroll/internal/config"
	"github.com/username/shift-payroll/internal/report"
	"github.com/username/shift-payroll/pkg/dateutil"
)

func wageCmd() *cobra.Command {
	var (
		detail  bool
		csvPath string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "wage <YYYY-MM>",
		Short: "Compute total duty hours and salary for a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := dateutil.ParseMonth(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			manager, cleanup, err := initializeManager(cfg, components{history: save})
			if err != nil {
				return err
			}
			defer cleanup()

			rep, err := manager.ComputeMonth(context.Background(), month, save)
			if err != nil {
				return err
			}

			if detail {
				outPrintf("📅 %s (%s)\n", month, filepath.Base(rep.ScheduleFile))
				outPrintln(report.FormatDetailed(rep.Result, rep.HolidayName))
			} else {
				outPrintln(report.Format(rep.Result))
			}

			if csvPath != "" {
				if err := report.WriteCSVFile(csvPath, rep.Result); err != nil {
					return err
				}
				outPrintf("📝 Breakdown written to %s\n", csvPath)
			}

			if rep.RunID != "" {
				outPrintf("✅ Run saved: %s\n", rep.RunID)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&detail, "detail", false, "Show the per-day breakdown")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the per-day breakdown to a CSV file")
	cmd.Flags().BoolVar(&save, "save", false, "Record the run in the history store")

	return cmd
}

func eventsCmd() *cobra.Command {
	var (
		scheduleFile string
		dryRun       bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Create calendar events for the working days of a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			manager, cleanup, err := initializeManager(cfg, components{calendar: true})
			if err != nil {
				return err
			}
			defer cleanup()

			if scheduleFile == "" {
				scheduleFile, err = manager.LatestScheduleFile()
				if err != nil {
					return err
				}
				logger.Info("Using latest schedule file", zap.String("file", scheduleFile))
			}

			result, err := manager.SyncEvents(context.Background(), scheduleFile, dryRun, force)
			if result != nil {
				for _, event := range result.Events {
					outPrintf("  %s %s  %s → %s\n",
						getIcon(dryRun),
						event.Summary,
						event.Start.DateTime,
						event.End.DateTime)
				}
			}
			if err != nil {
				return err
			}

			if dryRun {
				outPrintf("\n[DRY RUN] %d event(s) would be created from %s\n", len(result.Events), filepath.Base(scheduleFile))
			} else {
				outPrintf("\n✅ %d event(s) created, %d already present\n", result.Created, result.Skipped)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&scheduleFile, "schedule", "", "Schedule file (default: most recently modified *_shift.json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the events without calling the calendar API")
	cmd.Flags().BoolVar(&force, "force", false, "Create events again even if they were created before")

	return cmd
}

func importCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <YYYY-MM> <codes...>",
		Short: "Write a month's schedule file from a list of shift codes",
		Long: "Write {data_dir}/{YYYY-MM}_shift.json from whitespace separated shift codes.\n" +
			"The first code is day 1 of the month; use X for rest days.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := dateutil.ParseMonth(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			manager, cleanup, err := initializeManager(cfg, components{})
			if err != nil {
				return err
			}
			defer cleanup()

			path, schedule, err := manager.ImportSchedule(month, strings.Join(args[1:], " "), force)
			if err != nil {
				return err
			}

			outPrintf("✅ %d day(s) written to %s\n", schedule.Len(), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing schedule file")

	return cmd
}

func historyCmd() *cobra.Command {
	var (
		limit int
		month string
		show  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved payroll runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
				outPrintln("No saved runs")
				return nil
			}

			manager, cleanup, err := initializeManager(cfg, components{history: true})
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()

			if show != "" {
				run, err := manager.Run(ctx, show)
				if err != nil {
					return err
				}
				outPrintf("📅 %s  run %s  (%s)\n", run.Month, run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04"))
				outPrintf("   schedule: %s\n   inputs:   %s\n\n", run.ScheduleFile, run.Fingerprint)
				outPrintln(report.FormatDetailed(run.Result(), nil))
				return nil
			}

			if month != "" {
				m, err := dateutil.ParseMonth(month)
				if err != nil {
					return err
				}
				month = m.String()
			}

			runs, err := manager.History(ctx, month, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				outPrintln("No saved runs")
				return nil
			}

			outPrintln("  Run ID                               | Month   | Hours   | Salary     | Saved")
			outPrintln("---------------------------------------+---------+---------+------------+------------------")
			for _, run := range runs {
				outPrintf("  %-36s | %s | %7s | %10s | %s\n",
					run.ID,
					run.Month,
					run.TotalHours.StringFixed(2),
					run.TotalWage.StringFixed(2),
					run.CreatedAt.Local().Format("2006-01-02 15:04"))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&month, "month", "", "Only list runs for this month (YYYY-MM)")
	cmd.Flags().StringVar(&show, "show", "", "Show the per-day breakdown of one run")

	return cmd
}
