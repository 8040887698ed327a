package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/shopspring/decimal"
)

func seedRecords() []models.RateRecord {
	return []models.RateRecord{
		{Code: "USD", Category: models.CategoryFiat, Active: true},
		{Code: "eur", Category: models.CategoryFiat, Active: true},
		{Code: "BTC", Category: models.CategoryCrypto, Active: true},
		{Code: "XAU", Category: models.CategoryFiat, Active: false},
	}
}

func TestMemoryStore_SeedAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Seed(ctx, seedRecords()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	record, err := s.GetRate(ctx, "EUR")
	if err != nil {
		t.Fatalf("GetRate() error = %v", err)
	}
	if record.HasRate() || record.LastUpdated != nil {
		t.Errorf("seeded record = %+v, want no rate and no timestamp", record)
	}

	if _, err := s.GetRate(ctx, "CHF"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRate(CHF) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SeedKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Seed(ctx, seedRecords())

	now := time.Now()
	if err := s.SetRate(ctx, "EUR", decimal.RequireFromString("0.9"), now); err != nil {
		t.Fatalf("SetRate() error = %v", err)
	}
	_ = s.Seed(ctx, []models.RateRecord{{Code: "EUR", Category: models.CategoryFiat, Rate: decimal.NewNullDecimal(decimal.NewFromInt(2))}})

	record, _ := s.GetRate(ctx, "EUR")
	if !record.Rate.Decimal.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("Seed() overwrote existing rate: %v", record.Rate.Decimal)
	}
}

func TestMemoryStore_SeedWithRateStampsTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Seed(ctx, []models.RateRecord{
		{Code: "USD", Category: models.CategoryFiat, Rate: decimal.NewNullDecimal(decimal.NewFromInt(1)), Active: true},
		{Code: "EUR", Category: models.CategoryFiat, Rate: decimal.NewNullDecimal(decimal.Zero), Active: true},
	})

	usd, _ := s.GetRate(ctx, "USD")
	if !usd.HasRate() || usd.LastUpdated == nil {
		t.Errorf("USD = %+v, want rate with timestamp", usd)
	}
	eur, _ := s.GetRate(ctx, "EUR")
	if eur.Rate.Valid || eur.LastUpdated != nil {
		t.Errorf("EUR = %+v, want zero rate dropped", eur)
	}
}

func TestMemoryStore_SetRate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Seed(ctx, seedRecords())
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		code    string
		rate    decimal.Decimal
		wantErr error
	}{
		{"valid", "EUR", decimal.RequireFromString("0.92"), nil},
		{"lowercase code", "btc", decimal.RequireFromString("0.0000155"), nil},
		{"zero rate", "EUR", decimal.Zero, ErrInvalidRate},
		{"negative rate", "EUR", decimal.NewFromInt(-1), ErrInvalidRate},
		{"unknown code", "CHF", decimal.NewFromInt(1), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetRate(ctx, tt.code, tt.rate, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SetRate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetRate() error = %v", err)
			}
			record, _ := s.GetRate(ctx, tt.code)
			if !record.Rate.Decimal.Equal(tt.rate) || record.LastUpdated == nil || !record.LastUpdated.Equal(now) {
				t.Errorf("GetRate() = %+v, want rate %v at %v", record, tt.rate, now)
			}
		})
	}

	// Rejected writes leave the previous value in place
	record, _ := s.GetRate(ctx, "EUR")
	if !record.Rate.Decimal.Equal(decimal.RequireFromString("0.92")) {
		t.Errorf("EUR rate = %v after rejected writes, want 0.92", record.Rate.Decimal)
	}
}

func TestMemoryStore_Lists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Seed(ctx, seedRecords())

	fiat, _ := s.ListByCategory(ctx, models.CategoryFiat)
	if len(fiat) != 3 || fiat[0].Code != "EUR" || fiat[1].Code != "USD" || fiat[2].Code != "XAU" {
		t.Errorf("ListByCategory(FIAT) = %+v", fiat)
	}

	crypto, _ := s.ListByCategory(ctx, models.CategoryCrypto)
	if len(crypto) != 1 || crypto[0].Code != "BTC" {
		t.Errorf("ListByCategory(CRYPTO) = %+v", crypto)
	}

	active, _ := s.ListActive(ctx)
	if len(active) != 3 {
		t.Errorf("ListActive() length = %v, want 3", len(active))
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Seed(ctx, seedRecords())
	now := time.Now()
	_ = s.SetRate(ctx, "USD", decimal.NewFromInt(1), now)

	record, _ := s.GetRate(ctx, "USD")
	*record.LastUpdated = now.Add(-time.Hour)

	again, _ := s.GetRate(ctx, "USD")
	if !again.LastUpdated.Equal(now) {
		t.Errorf("caller mutation leaked into store")
	}
}
