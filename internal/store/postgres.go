package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// currencyModel is the currencies table row
type currencyModel struct {
	Code        string              `gorm:"primaryKey;size:10"`
	Category    string              `gorm:"size:10;not null;index:idx_currencies_category"`
	Rate        decimal.NullDecimal `gorm:"type:numeric(30,12)"`
	LastUpdated *time.Time
	IsActive    bool `gorm:"not null;default:true"`
}

func (currencyModel) TableName() string {
	return "currencies"
}

// PostgresStore is a RateStore backed by PostgreSQL through gorm
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn. Schema is managed by RunMigrations, not AutoMigrate.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a store over an open connection
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetRate(ctx context.Context, code string) (models.RateRecord, error) {
	var row currencyModel
	err := s.db.WithContext(ctx).Where("code = ?", normalizeCode(code)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RateRecord{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		return models.RateRecord{}, fmt.Errorf("failed to get rate %s: %w", code, err)
	}
	return toRecord(row), nil
}

func (s *PostgresStore) SetRate(ctx context.Context, code string, rate decimal.Decimal, updatedAt time.Time) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: %s=%s", ErrInvalidRate, code, rate)
	}

	result := s.db.WithContext(ctx).
		Model(&currencyModel{}).
		Where("code = ?", normalizeCode(code)).
		Updates(map[string]interface{}{
			"rate":         decimal.NewNullDecimal(rate),
			"last_updated": updatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set rate %s: %w", code, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return nil
}

func (s *PostgresStore) ListByCategory(ctx context.Context, category models.Category) ([]models.RateRecord, error) {
	var rows []currencyModel
	if err := s.db.WithContext(ctx).Where("category = ?", string(category)).Order("code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s rates: %w", category, err)
	}
	return toRecords(rows), nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.RateRecord, error) {
	var rows []currencyModel
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list active rates: %w", err)
	}
	return toRecords(rows), nil
}

func (s *PostgresStore) Seed(ctx context.Context, records []models.RateRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]currencyModel, 0, len(records))
	for _, record := range records {
		row := currencyModel{
			Code:     normalizeCode(record.Code),
			Category: string(record.Category),
			IsActive: record.Active,
		}
		if record.HasRate() {
			row.Rate = record.Rate
			row.LastUpdated = record.LastUpdated
			if row.LastUpdated == nil {
				now := time.Now()
				row.LastUpdated = &now
			}
		}
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to seed currencies: %w", err)
	}
	return nil
}

func toRecord(row currencyModel) models.RateRecord {
	return models.RateRecord{
		Code:        row.Code,
		Rate:        row.Rate,
		Category:    models.Category(row.Category),
		LastUpdated: row.LastUpdated,
		Active:      row.IsActive,
	}
}

func toRecords(rows []currencyModel) []models.RateRecord {
	records := make([]models.RateRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}
	return records
}
