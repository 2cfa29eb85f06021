package calendar

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CompositeSource implements Source with fallback strategy
// Primary: RemoteSource (API)
// Fallback: FileSource (local file)
type CompositeSource struct {
	primary  Source
	fallback Source
	logger   *zap.Logger
}

// NewCompositeSource creates a new CompositeSource
func NewCompositeSource(primary, fallback Source, logger *zap.Logger) *CompositeSource {
	return &CompositeSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Holidays tries the primary source and falls back to the secondary one on failure
func (cs *CompositeSource) Holidays(ctx context.Context, year int) (*HolidaySet, error) {
	hs, err := cs.primary.Holidays(ctx, year)
	if err == nil {
		return hs, nil
	}

	cs.logger.Warn("Primary holiday source failed, falling back to file",
		zap.Int("year", year),
		zap.Error(err))

	hs, fallbackErr := cs.fallback.Holidays(ctx, year)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary and fallback both failed: primary=%w, fallback=%v", err, fallbackErr)
	}
	return hs, nil
}

// ForYears collects the holidays of every listed year into one set
func ForYears(ctx context.Context, src Source, years []int) (*HolidaySet, error) {
	out := NewHolidaySet()
	for _, year := range years {
		hs, err := src.Holidays(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("holidays for %d: %w", year, err)
		}
		out = out.Merge(hs)
	}
	return out, nil
}
