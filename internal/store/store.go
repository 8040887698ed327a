package store

import (
	"context"
	"errors"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned for a currency code that was never seeded
	ErrNotFound = errors.New("currency not found")
	// ErrInvalidRate is returned when a non-positive rate is written
	ErrInvalidRate = errors.New("rate must be positive")
)

// RateStore is durable storage of the current rate per currency code.
// Each write updates rate and last-updated together.
type RateStore interface {
	GetRate(ctx context.Context, code string) (models.RateRecord, error)
	SetRate(ctx context.Context, code string, rate decimal.Decimal, updatedAt time.Time) error
	ListByCategory(ctx context.Context, category models.Category) ([]models.RateRecord, error)
	ListActive(ctx context.Context) ([]models.RateRecord, error)
	// Seed inserts records whose code is not present yet and leaves existing rows alone
	Seed(ctx context.Context, records []models.RateRecord) error
}
