package database

import (
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock-ledger/models"
)

var (
	ErrInvalidTransaction = fmt.Errorf("invalid transaction")
	ErrInvalidData        = fmt.Errorf("invalid data, expected slice")
)

// Open connects through the given dialector (postgres in production) with
// gorm logging routed to zap.
func Open(dialector gorm.Dialector, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Stock{},
		&models.Position{},
		&models.Trade{},
		&models.StockPrice{},
	)
}

// CreateInBatches inserts a slice in chunks of batchSize inside one
// transaction (a savepoint when db is already a transaction).
func CreateInBatches(db *gorm.DB, data interface{}, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidTransaction
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return ErrInvalidData
	}

	return db.Transaction(func(tx *gorm.DB) error {
		total := slice.Len()
		for i := 0; i < total; i += batchSize {
			end := i + batchSize
			if end > total {
				end = total
			}

			chunk := slice.Slice(i, end).Interface()
			if err := tx.Create(chunk).Error; err != nil {
				return fmt.Errorf("batch insert failed: %w", err)
			}
		}
		return nil
	})
}
