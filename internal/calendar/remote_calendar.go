package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 24 * time.Hour
)

// RemoteSource fetches holiday files over HTTP. The URL may contain a {year}
// placeholder; the response body uses the same formats as ParseHolidays.
type RemoteSource struct {
	urlTemplate string
	apiToken    string
	cacheTTL    time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	cache       map[int]*cachedYear
	cacheMu     sync.RWMutex
}

type cachedYear struct {
	data      *HolidaySet
	fetchedAt time.Time
}

// NewRemoteSource creates a new RemoteSource instance
func NewRemoteSource(urlTemplate, apiToken string, cacheTTL time.Duration, logger *zap.Logger) *RemoteSource {
	if cacheTTL == 0 {
		cacheTTL = defaultCacheTTL
	}

	return &RemoteSource{
		urlTemplate: urlTemplate,
		apiToken:    apiToken,
		cacheTTL:    cacheTTL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
		cache:  make(map[int]*cachedYear),
	}
}

// Holidays returns the holidays of year, served from cache while fresh
func (rs *RemoteSource) Holidays(ctx context.Context, year int) (*HolidaySet, error) {
	rs.cacheMu.RLock()
	if cached, ok := rs.cache[year]; ok {
		if time.Since(cached.fetchedAt) < rs.cacheTTL {
			rs.cacheMu.RUnlock()
			rs.logger.Debug("Using cached holidays", zap.Int("year", year))
			return cached.data, nil
		}
	}
	rs.cacheMu.RUnlock()

	hs, err := rs.fetchYear(ctx, year)
	if err != nil {
		return nil, err
	}

	rs.cacheMu.Lock()
	rs.cache[year] = &cachedYear{
		data:      hs,
		fetchedAt: time.Now(),
	}
	rs.cacheMu.Unlock()

	rs.logger.Info("Holidays fetched and cached",
		zap.Int("year", year),
		zap.Int("holidays", hs.Len()))

	return hs, nil
}

func (rs *RemoteSource) fetchYear(ctx context.Context, year int) (*HolidaySet, error) {
	url := strings.ReplaceAll(rs.urlTemplate, "{year}", strconv.Itoa(year))

	rs.logger.Debug("Fetching holidays",
		zap.String("url", url),
		zap.Int("year", year))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if rs.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+rs.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holidays: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	hs, err := ParseHolidays(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse holiday response: %w", err)
	}

	return hs.Year(year), nil
}

// ClearCache clears the cache
func (rs *RemoteSource) ClearCache() {
	rs.cacheMu.Lock()
	defer rs.cacheMu.Unlock()

	rs.cache = make(map[int]*cachedYear)
	rs.logger.Info("Holiday cache cleared")
}
