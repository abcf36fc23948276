package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock-ledger/ledger"
	"stock-ledger/models"
)

const priceBatchSize = 100

// ErrDuplicate is returned when a unique username or symbol is taken.
var ErrDuplicate = errors.New("already exists")

// Store is the gorm implementation of ledger.Store plus the catalog and user
// administration queries used by the HTTP layer.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ ledger.Store = (*Store)(nil)

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Atomic runs fn in a transaction. Nested calls become savepoints.
func (s *Store) Atomic(ctx context.Context, fn func(ledger.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("user %d", id))
	}
	return &u, nil
}

func (s *Store) StockByID(ctx context.Context, id uint) (*models.Stock, error) {
	var st models.Stock
	if err := s.db.WithContext(ctx).First(&st, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("stock %d", id))
	}
	return &st, nil
}

func (s *Store) StockBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	var st models.Stock
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&st).Error; err != nil {
		return nil, translate(err, "stock "+symbol)
	}
	return &st, nil
}

func (s *Store) ListStocks(ctx context.Context) ([]models.Stock, error) {
	var stocks []models.Stock
	if err := s.db.WithContext(ctx).Order("id").Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

// SaveStocks writes each stock back individually.
func (s *Store) SaveStocks(ctx context.Context, stocks []models.Stock) error {
	db := s.db.WithContext(ctx)
	for i := range stocks {
		if err := db.Save(&stocks[i]).Error; err != nil {
			return fmt.Errorf("save stock %s: %w", stocks[i].Symbol, err)
		}
	}
	return nil
}

// FindPosition reads the position with SELECT ... FOR UPDATE so that a
// concurrent trade on the same row waits for this transaction.
func (s *Store) FindPosition(ctx context.Context, userID, stockID uint) (*models.Position, error) {
	var p models.Position
	res := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND stock_id = ?", userID, stockID).
		Limit(1).
		Find(&p)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) PositionsByUser(ctx context.Context, userID uint) ([]models.Position, error) {
	var positions []models.Position
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// SavePosition reports ledger.ErrConflict when a concurrent transaction
// already created the (user, stock) position.
func (s *Store) SavePosition(ctx context.Context, p *models.Position) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("position for user %d stock %d: %w", p.UserID, p.StockID, ledger.ErrConflict)
	}
	return err
}

func (s *Store) DeletePosition(ctx context.Context, p *models.Position) error {
	return s.db.WithContext(ctx).Delete(&models.Position{}, p.ID).Error
}

func (s *Store) AppendTrade(ctx context.Context, t *models.Trade) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

func (s *Store) TradesByUser(ctx context.Context, userID uint) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc, id desc").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (s *Store) RecordPrices(ctx context.Context, prices []models.StockPrice) error {
	return CreateInBatches(s.db.WithContext(ctx), prices, priceBatchSize)
}

// PriceHistory returns the most recent recorded prices for symbol, newest
// first.
func (s *Store) PriceHistory(ctx context.Context, symbol string, limit int) ([]models.StockPrice, error) {
	var prices []models.StockPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&prices).Error
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// translate maps gorm errors onto the ledger and store sentinels.
func translate(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s %w", what, ledger.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s %w", what, ErrDuplicate)
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
