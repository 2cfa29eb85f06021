package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/username/shift-payroll/internal/calendar"
	"github.com/username/shift-payroll/internal/config"
	"github.com/username/shift-payroll/internal/gcal"
	"github.com/username/shift-payroll/internal/payroll"
	"github.com/username/shift-payroll/internal/store"
	"github.com/username/shift-payroll/internal/wage"
)

var (
	configPath string
	logger     *zap.Logger
	out        io.Writer = os.Stdout
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "shift-payroll",
		Short:         "Shift wage and hours calculator",
		Long:          "Compute monthly duty hours and pay from a shift schedule, with tiered overtime and holiday rates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config to get log file path
			cfg, err := config.Load(configPath)
			if err == nil && cfg.Log.File != "" {
				logger, err = initFileLogger(cfg.Log.File, cfg.Log.Level)
				if err != nil {
					initLogger("info") // Fallback to console
				}
			} else if err == nil {
				initLogger(cfg.Log.Level)
			} else {
				initLogger("info")
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: config.yaml in ., $HOME/.shift-payroll, /etc/shift-payroll)")

	rootCmd.AddCommand(wageCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// components selects the optional collaborators a command needs
type components struct {
	history  bool
	calendar bool
}

func initializeManager(cfg *config.Config, need components) (*payroll.Manager, func(), error) {
	cleanup := func() {}

	engine := wage.NewEngine(logger)
	calc := wage.NewCache(engine, logger)

	var st *store.Store
	if need.history {
		if dir := filepath.Dir(cfg.Store.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}

		var err error
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open run history: %w", err)
		}
		cleanup = func() { st.Close() }
	}

	var (
		events    payroll.EventCreator
		syncState *payroll.SyncStateManager
	)
	if need.calendar {
		var tokens gcal.TokenSource
		if cfg.Calendar.Token != "" {
			logger.Info("Using static calendar token")
			tokens = gcal.StaticToken(cfg.Calendar.Token)
		} else {
			tokens = gcal.NewTokenManager(cfg.Calendar.TokenFile, cfg.Calendar.TokenURI, logger)
		}
		events = gcal.NewClient(cfg.Calendar.APIEndpoint, cfg.Calendar.CalendarID, tokens, logger)

		syncState = payroll.NewSyncStateManager(cfg.Calendar.StateFile, logger)
		if err := syncState.Load(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	manager := payroll.NewManager(cfg, calc, holidaySource(cfg), st, events, syncState, logger)
	return manager, cleanup, nil
}

// holidaySource combines the remote source and the holiday file.
// The file serves as fallback when both are configured.
func holidaySource(cfg *config.Config) calendar.Source {
	var file calendar.Source
	if path := cfg.Data.HolidayPath(); path != "" {
		file = calendar.NewFileSource(path, logger)
	}

	if cfg.Holidays.SourceURL == "" {
		if file == nil {
			logger.Info("No holiday source configured")
		}
		return file
	}

	remote := calendar.NewRemoteSource(cfg.Holidays.SourceURL, cfg.Holidays.APIToken,
		cfg.Holidays.GetCacheTTL(), logger)
	if file == nil {
		logger.Info("Using remote holiday source", zap.String("url", cfg.Holidays.SourceURL))
		return remote
	}

	logger.Info("Using remote holiday source with file fallback",
		zap.String("url", cfg.Holidays.SourceURL),
		zap.String("file", cfg.Data.HolidayPath()))
	return calendar.NewCompositeSource(remote, file, logger)
}

func initLogger(level string) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = lvl
	}

	var err error
	logger, err = config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
}

func initFileLogger(logFile string, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Setup lumberjack for log rotation
	logWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,  // MB
		MaxBackups: 3,    // Keep max 3 old log files
		MaxAge:     28,   // days
		Compress:   true, // Compress old logs with gzip
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logWriter),
		zapLevel,
	)

	return zap.New(core), nil
}

func outPrintf(format string, a ...interface{}) {
	fmt.Fprintf(out, format, a...)
}

func outPrintln(a ...interface{}) {
	fmt.Fprintln(out, a...)
}

func getIcon(dryRun bool) string {
	if dryRun {
		return "📋"
	}
	return "✅"
}
