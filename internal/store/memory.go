package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process RateStore
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.RateRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.RateRecord)}
}

func (s *MemoryStore) GetRate(ctx context.Context, code string) (models.RateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[normalizeCode(code)]
	if !ok {
		return models.RateRecord{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return copyRecord(record), nil
}

func (s *MemoryStore) SetRate(ctx context.Context, code string, rate decimal.Decimal, updatedAt time.Time) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: %s=%s", ErrInvalidRate, code, rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code = normalizeCode(code)
	record, ok := s.records[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	record.Rate = decimal.NewNullDecimal(rate)
	ts := updatedAt
	record.LastUpdated = &ts
	s.records[code] = record
	return nil
}

func (s *MemoryStore) ListByCategory(ctx context.Context, category models.Category) ([]models.RateRecord, error) {
	return s.list(func(r models.RateRecord) bool { return r.Category == category }), nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]models.RateRecord, error) {
	return s.list(func(r models.RateRecord) bool { return r.Active }), nil
}

func (s *MemoryStore) Seed(ctx context.Context, records []models.RateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		code := normalizeCode(record.Code)
		if code == "" {
			return fmt.Errorf("seed record has empty code")
		}
		if _, exists := s.records[code]; exists {
			continue
		}
		if !record.HasRate() {
			record.Rate = decimal.NullDecimal{}
			record.LastUpdated = nil
		} else if record.LastUpdated == nil {
			now := time.Now()
			record.LastUpdated = &now
		}
		record.Code = code
		s.records[code] = copyRecord(record)
	}
	return nil
}

func (s *MemoryStore) list(keep func(models.RateRecord) bool) []models.RateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.RateRecord, 0, len(s.records))
	for _, record := range s.records {
		if keep(record) {
			result = append(result, copyRecord(record))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

func copyRecord(record models.RateRecord) models.RateRecord {
	if record.LastUpdated != nil {
		ts := *record.LastUpdated
		record.LastUpdated = &ts
	}
	return record
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
