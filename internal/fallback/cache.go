package fallback

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/dalfonso89/rate-ingestion-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAge is the staleness bound for applying cached rates
const DefaultMaxAge = 24 * time.Hour

// Mirror persists fallback entries outside the process
type Mirror interface {
	Save(ctx context.Context, entry models.FallbackEntry) error
	LoadAll(ctx context.Context) ([]models.FallbackEntry, error)
}

// Cache holds the last-known-good rate per currency code.
// Entries are never expired; Apply skips the stale ones.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.FallbackEntry
	mirror  Mirror
	logger  *logrus.Logger
	now     func() time.Time
}

// NewCache creates an empty cache. mirror may be nil.
func NewCache(mirror Mirror, logger *logrus.Logger, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]models.FallbackEntry),
		mirror:  mirror,
		logger:  logger,
		now:     now,
	}
}

// Put stores rate as the newest entry for code, overwriting any previous one.
// Mirror failures are logged and never reported to the caller.
func (c *Cache) Put(ctx context.Context, code string, rate float64, category models.Category, source string) {
	entry := models.FallbackEntry{
		Code:      strings.ToUpper(code),
		Rate:      rate,
		Category:  category,
		Source:    source,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	c.entries[entry.Code] = entry
	c.mu.Unlock()

	if c.mirror == nil {
		return
	}
	if err := c.mirror.Save(ctx, entry); err != nil {
		c.logger.WithFields(logrus.Fields{
			"code":  entry.Code,
			"error": err,
		}).Warn("Failed to mirror fallback entry")
	}
}

// GetAll returns every entry, stale ones included, ordered by code
func (c *Cache) GetAll() []models.FallbackEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]models.FallbackEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	return entries
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Apply writes every entry no older than maxAge into rates with lastUpdated = now
// and returns how many were written. With categories given, only those are applied.
func (c *Cache) Apply(ctx context.Context, rates store.RateStore, maxAge time.Duration, categories ...models.Category) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := c.now()
	applied := 0

	for _, entry := range c.GetAll() {
		if len(categories) > 0 && !containsCategory(categories, entry.Category) {
			continue
		}
		if now.Sub(entry.Timestamp) > maxAge {
			c.logger.WithFields(logrus.Fields{
				"code": entry.Code,
				"age":  now.Sub(entry.Timestamp).String(),
			}).Debug("Skipping stale fallback entry")
			continue
		}
		if err := rates.SetRate(ctx, entry.Code, decimal.NewFromFloat(entry.Rate), now); err != nil {
			c.logger.WithFields(logrus.Fields{
				"code":  entry.Code,
				"error": err,
			}).Warn("Failed to apply fallback rate")
			continue
		}
		applied++
	}
	return applied
}

// Load restores entries from the mirror, keeping whichever is newer per code
func (c *Cache) Load(ctx context.Context) (int, error) {
	if c.mirror == nil {
		return 0, nil
	}
	entries, err := c.mirror.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, entry := range entries {
		if entry.Code == "" || entry.Rate <= 0 {
			continue
		}
		if existing, ok := c.entries[entry.Code]; ok && !entry.Timestamp.After(existing.Timestamp) {
			continue
		}
		c.entries[entry.Code] = entry
		loaded++
	}
	return loaded, nil
}

func containsCategory(categories []models.Category, category models.Category) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}
