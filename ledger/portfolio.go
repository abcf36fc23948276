package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"stock-ledger/models"
)

type PositionView struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Quantity         int             `json:"quantity"`
	AvgCost          decimal.Decimal `json:"avg_cost"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	RealizedProfit   decimal.Decimal `json:"realized_profit"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
}

// MarshalJSON writes cost and profit figures with exactly PriceScale
// decimals ("110.00", not "110"). CurrentPrice keeps its own scale.
func (v PositionView) MarshalJSON() ([]byte, error) {
	type view PositionView
	return json.Marshal(struct {
		view
		AvgCost          string `json:"avg_cost"`
		RealizedProfit   string `json:"realized_profit"`
		UnrealizedProfit string `json:"unrealized_profit"`
		TotalProfit      string `json:"total_profit"`
	}{
		view:             view(v),
		AvgCost:          v.AvgCost.StringFixed(PriceScale),
		RealizedProfit:   v.RealizedProfit.StringFixed(PriceScale),
		UnrealizedProfit: v.UnrealizedProfit.StringFixed(PriceScale),
		TotalProfit:      v.TotalProfit.StringFixed(PriceScale),
	})
}

// UserPortfolio values every open position of the user at the stock's
// current price. A missing or unpriced stock is valued at zero.
func (l *Ledger) UserPortfolio(ctx context.Context, userID uint) ([]PositionView, error) {
	positions, err := l.store.PositionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("positions for user %d: %w", userID, err)
	}

	stocks := newStockCache(l.store)
	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		if p.Quantity <= 0 {
			continue
		}
		stock, err := stocks.get(ctx, p.StockID)
		if err != nil {
			return nil, err
		}
		price := currentPrice(stock)
		realized, unrealized := profit(p, price)

		v := PositionView{
			Quantity:         p.Quantity,
			AvgCost:          p.AvgCost.Round(PriceScale),
			CurrentPrice:     price.Round(PriceScale),
			RealizedProfit:   realized,
			UnrealizedProfit: unrealized,
			TotalProfit:      realized.Add(unrealized),
		}
		if stock != nil {
			v.Symbol = stock.Symbol
			v.Name = stock.Name
		}
		views = append(views, v)
	}
	return views, nil
}

// TotalProfit sums realized and unrealized profit over all of the user's
// positions, including empty ones should any exist.
func (l *Ledger) TotalProfit(ctx context.Context, userID uint) (decimal.Decimal, error) {
	positions, err := l.store.PositionsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("positions for user %d: %w", userID, err)
	}

	stocks := newStockCache(l.store)
	total := decimal.Zero
	for _, p := range positions {
		stock, err := stocks.get(ctx, p.StockID)
		if err != nil {
			return decimal.Zero, err
		}
		realized, unrealized := profit(p, currentPrice(stock))
		total = total.Add(realized).Add(unrealized)
	}
	return total.Round(PriceScale), nil
}

// profit rounds the realized accumulator and the product
// (price - avgCost) * quantity, each half-up to PriceScale.
func profit(p models.Position, price decimal.Decimal) (realized, unrealized decimal.Decimal) {
	realized = p.RealizedPnl.Round(PriceScale)
	unrealized = price.Sub(p.AvgCost).
		Mul(decimal.NewFromInt(int64(p.Quantity))).
		Round(PriceScale)
	return realized, unrealized
}

func currentPrice(stock *models.Stock) decimal.Decimal {
	if stock == nil || !stock.Price.Valid {
		return decimal.Zero
	}
	return stock.Price.Decimal
}

// stockCache memoizes StockByID for the duration of one call. A missing
// stock is cached as nil.
type stockCache struct {
	lookup StockLookup
	stocks map[uint]*models.Stock
}

func newStockCache(lookup StockLookup) *stockCache {
	return &stockCache{lookup: lookup, stocks: make(map[uint]*models.Stock)}
}

func (c *stockCache) get(ctx context.Context, id uint) (*models.Stock, error) {
	if s, ok := c.stocks[id]; ok {
		return s, nil
	}
	s, err := c.lookup.StockByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("stock %d: %w", id, err)
		}
		s = nil
	}
	c.stocks[id] = s
	return s, nil
}
