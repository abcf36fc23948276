package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"stock-ledger/models"
)

type UserLookup interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

type StockLookup interface {
	StockByID(ctx context.Context, id uint) (*models.Stock, error)
	StockBySymbol(ctx context.Context, symbol string) (*models.Stock, error)
	ListStocks(ctx context.Context) ([]models.Stock, error)
	SaveStocks(ctx context.Context, stocks []models.Stock) error
}

// PositionStore persists positions. FindPosition returns (nil, nil) when the
// user holds no position in the stock; inside Atomic it must lock the row so
// that concurrent trades on the same position are serialized.
type PositionStore interface {
	FindPosition(ctx context.Context, userID, stockID uint) (*models.Position, error)
	PositionsByUser(ctx context.Context, userID uint) ([]models.Position, error)
	SavePosition(ctx context.Context, p *models.Position) error
	DeletePosition(ctx context.Context, p *models.Position) error
}

type TradeStore interface {
	AppendTrade(ctx context.Context, t *models.Trade) error
	TradesByUser(ctx context.Context, userID uint) ([]models.Trade, error)
}

type PriceHistory interface {
	RecordPrices(ctx context.Context, prices []models.StockPrice) error
}

// Store is the persistence boundary of the ledger. Atomic runs fn in a single
// transaction: any error returned by fn rolls back every write made through
// the Store it receives.
type Store interface {
	UserLookup
	StockLookup
	PositionStore
	TradeStore
	PriceHistory

	Atomic(ctx context.Context, fn func(Store) error) error
}

// PriceSource returns the latest price for as many of the requested symbols
// as it can. Missing symbols are simply absent from the map.
type PriceSource interface {
	Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}
