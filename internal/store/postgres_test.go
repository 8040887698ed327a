package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/shopspring/decimal"
)

// Runs only when TEST_DATABASE_URL points at a disposable PostgreSQL database
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := OpenPostgres(dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM currencies")
	})

	ctx := context.Background()
	s := NewPostgresStore(db)
	if err := s.Seed(ctx, seedRecords()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if err := s.Seed(ctx, seedRecords()); err != nil {
		t.Fatalf("Seed() repeat error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.SetRate(ctx, "EUR", decimal.RequireFromString("0.91"), now); err != nil {
		t.Fatalf("SetRate() error = %v", err)
	}
	record, err := s.GetRate(ctx, "EUR")
	if err != nil {
		t.Fatalf("GetRate() error = %v", err)
	}
	if !record.Rate.Decimal.Equal(decimal.RequireFromString("0.91")) || record.LastUpdated == nil || !record.LastUpdated.Equal(now) {
		t.Errorf("GetRate() = %+v", record)
	}

	if err := s.SetRate(ctx, "CHF", decimal.NewFromInt(1), now); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRate(CHF) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRate(ctx, "CHF"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRate(CHF) error = %v, want ErrNotFound", err)
	}

	crypto, err := s.ListByCategory(ctx, models.CategoryCrypto)
	if err != nil || len(crypto) != 1 {
		t.Errorf("ListByCategory(CRYPTO) = %+v, %v", crypto, err)
	}
	active, err := s.ListActive(ctx)
	if err != nil || len(active) != 3 {
		t.Errorf("ListActive() = %d records, %v", len(active), err)
	}
}
