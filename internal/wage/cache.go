package wage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/username/shift-payroll/internal/calendar"
	"github.com/username/shift-payroll/internal/shift"
)

// Cache memoizes a Calculator by the content of its inputs.
// Failed computations are not cached.
type Cache struct {
	calc    Calculator
	logger  *zap.Logger
	mu      sync.RWMutex
	results map[string]*Result
	hits    int
	misses  int
}

// NewCache wraps calc
func NewCache(calc Calculator, logger *zap.Logger) *Cache {
	return &Cache{
		calc:    calc,
		logger:  logger,
		results: make(map[string]*Result),
	}
}

// Compute returns a cached result for identical inputs or delegates to the wrapped calculator
func (c *Cache) Compute(schedule *shift.Schedule, catalog *shift.Catalog, holidays *calendar.HolidaySet, rates RateConfig) (*Result, error) {
	key := Fingerprint(schedule, catalog, holidays, rates)

	c.mu.RLock()
	cached, ok := c.results[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		c.logger.Debug("Using cached wage result", zap.String("key", key[:12]))
		return cached.clone(), nil
	}

	result, err := c.calc.Compute(schedule, catalog, holidays, rates)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.results[key] = result.clone()
	c.mu.Unlock()

	return result, nil
}

// Stats returns the hit and miss counters
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear drops all cached results
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = make(map[string]*Result)
	c.logger.Info("Wage cache cleared")
}

// Fingerprint is the SHA-256 of a canonical rendering of the inputs.
// Map ordering and holiday names do not affect it.
func Fingerprint(schedule *shift.Schedule, catalog *shift.Catalog, holidays *calendar.HolidaySet, rates RateConfig) string {
	h := sha256.New()

	fmt.Fprintf(h, "rates:%s\n", rates)

	fmt.Fprint(h, "catalog:\n")
	if catalog != nil {
		for _, code := range catalog.Codes() {
			def, _ := catalog.Lookup(code)
			fmt.Fprintf(h, "%q=%d-%d\n", string(code), int(def.Start), int(def.End))
		}
	}

	fmt.Fprint(h, "schedule:\n")
	if schedule != nil {
		for _, e := range schedule.Entries() {
			fmt.Fprintf(h, "%s=%q\n", e.Date.Format("2006-01-02"), string(e.Code))
		}
	}

	fmt.Fprint(h, "holidays:\n")
	for _, d := range holidays.Dates() {
		fmt.Fprintf(h, "%s\n", d)
	}

	return hex.EncodeToString(h.Sum(nil))
}
