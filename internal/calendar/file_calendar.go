package calendar

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/username/shift-payroll/pkg/dateutil"
)

// FileSource serves holidays from a local file, loaded once on first use
type FileSource struct {
	filePath string
	logger   *zap.Logger

	once sync.Once
	set  *HolidaySet
	err  error
}

// NewFileSource creates a new FileSource instance
func NewFileSource(filePath string, logger *zap.Logger) *FileSource {
	return &FileSource{
		filePath: filePath,
		logger:   logger,
	}
}

// Holidays returns the holidays of year found in the file
func (fs *FileSource) Holidays(ctx context.Context, year int) (*HolidaySet, error) {
	fs.once.Do(func() {
		fs.set, fs.err = LoadHolidays(fs.filePath, fs.logger)
	})
	if fs.err != nil {
		return nil, fs.err
	}
	return fs.set.Year(year), nil
}

// LoadHolidays reads a holiday file. Files ending in .json hold a list or object
// of dates; any other file is read as text lines "YYYY-MM-DD [name]".
func LoadHolidays(filePath string, logger *zap.Logger) (*HolidaySet, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open holiday file: %w", err)
	}

	var hs *HolidaySet
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		hs, err = ParseHolidays(data)
	} else {
		hs, err = parseHolidayLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	logger.Info("Holiday file loaded",
		zap.String("file", filePath),
		zap.Int("holidays", hs.Len()))

	return hs, nil
}

// parseHolidayLines reads one holiday per line.
// Format: YYYY-MM-DD [name]
// Example: 2024-02-10 Lunar New Year
func parseHolidayLines(data []byte) (*HolidaySet, error) {
	hs := NewHolidaySet()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		date, err := dateutil.ParseDate(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		name := ""
		if len(parts) == 2 {
			name = parts[1]
		}
		hs.add(date, name)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading holiday file: %w", err)
	}

	return hs, nil
}
