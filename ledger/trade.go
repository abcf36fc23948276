package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-ledger/models"
)

type TradeView struct {
	ID          uint            `json:"id"`
	Side        models.Side     `json:"type"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	StockSymbol string          `json:"stock_symbol"`
	StockName   string          `json:"stock_name"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ExecuteTrade records a trade and applies it to the user's position in one
// transaction. Nothing is written when a precondition fails.
func (l *Ledger) ExecuteTrade(ctx context.Context, userID uint, symbol string, side models.Side, quantity int, price decimal.Decimal) (*models.Trade, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOperation, quantity)
	}
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("%w: unknown trade side %q", ErrInvalidOperation, side)
	}
	symbol = NormalizeSymbol(symbol)

	var trade *models.Trade
	unit := func(s Store) error {
		if _, err := s.UserByID(ctx, userID); err != nil {
			return fmt.Errorf("user %d: %w", userID, err)
		}
		stock, err := s.StockBySymbol(ctx, symbol)
		if err != nil {
			return fmt.Errorf("stock %s: %w", symbol, err)
		}

		pos, err := s.FindPosition(ctx, userID, stock.ID)
		if err != nil {
			return fmt.Errorf("find position: %w", err)
		}

		switch side {
		case models.SideBuy:
			pos = applyBuy(pos, userID, stock.ID, quantity, price)
			if err := s.SavePosition(ctx, pos); err != nil {
				return fmt.Errorf("save position: %w", err)
			}
		case models.SideSell:
			if pos == nil || pos.Quantity < quantity {
				held := 0
				if pos != nil {
					held = pos.Quantity
				}
				return fmt.Errorf("%w: insufficient shares to sell (held %d, requested %d)", ErrInvalidOperation, held, quantity)
			}
			applySell(pos, quantity, price)
			if pos.Quantity == 0 {
				// The realized P&L of a closed position goes with it.
				if err := s.DeletePosition(ctx, pos); err != nil {
					return fmt.Errorf("delete position: %w", err)
				}
			} else if err := s.SavePosition(ctx, pos); err != nil {
				return fmt.Errorf("save position: %w", err)
			}
		}

		t := &models.Trade{
			UserID:    userID,
			StockID:   stock.ID,
			Side:      side,
			Quantity:  quantity,
			Price:     price,
			Timestamp: l.now().UTC(),
		}
		if err := s.AppendTrade(ctx, t); err != nil {
			return fmt.Errorf("append trade: %w", err)
		}
		trade = t
		return nil
	}

	// Two first buys of a stock both find no position; the loser's insert
	// hits the unique index. Run again to lock and extend the winner's row.
	err := l.store.Atomic(ctx, unit)
	if errors.Is(err, ErrConflict) {
		l.logger.Warn("position created concurrently, retrying trade",
			zap.Uint("user_id", userID),
			zap.String("symbol", symbol))
		err = l.store.Atomic(ctx, unit)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("trade executed",
		zap.Uint("user_id", userID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int("quantity", quantity),
		zap.String("price", price.String()),
		zap.Uint("trade_id", trade.ID))
	return trade, nil
}

// applyBuy returns the position after buying quantity at price, creating it
// when pos is nil. The cost basis is always held at PriceScale.
func applyBuy(pos *models.Position, userID, stockID uint, quantity int, price decimal.Decimal) *models.Position {
	if pos == nil {
		return &models.Position{
			UserID:      userID,
			StockID:     stockID,
			Quantity:    quantity,
			AvgCost:     price.Round(PriceScale),
			RealizedPnl: decimal.Zero,
		}
	}
	pos.AvgCost = weightedAvg(pos.AvgCost, pos.Quantity, price, quantity)
	pos.Quantity += quantity
	return pos
}

// applySell books the realized delta at full precision. The cost basis of
// the remaining shares does not move.
func applySell(pos *models.Position, quantity int, price decimal.Decimal) {
	delta := price.Sub(pos.AvgCost).Mul(decimal.NewFromInt(int64(quantity)))
	pos.RealizedPnl = pos.RealizedPnl.Add(delta)
	pos.Quantity -= quantity
}

func weightedAvg(avgCost decimal.Decimal, qty int, price decimal.Decimal, addQty int) decimal.Decimal {
	if qty == 0 {
		return price
	}
	oldQty := decimal.NewFromInt(int64(qty))
	newQty := decimal.NewFromInt(int64(addQty))
	return avgCost.Mul(oldQty).
		Add(price.Mul(newQty)).
		DivRound(oldQty.Add(newQty), PriceScale)
}

// TradeHistory lists the user's trades, newest first.
func (l *Ledger) TradeHistory(ctx context.Context, userID uint) ([]TradeView, error) {
	trades, err := l.store.TradesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trades for user %d: %w", userID, err)
	}
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].Timestamp.Equal(trades[j].Timestamp) {
			return trades[i].ID > trades[j].ID
		}
		return trades[i].Timestamp.After(trades[j].Timestamp)
	})

	stocks := newStockCache(l.store)
	views := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		stock, err := stocks.get(ctx, t.StockID)
		if err != nil {
			return nil, err
		}
		v := TradeView{
			ID:        t.ID,
			Side:      t.Side,
			Quantity:  t.Quantity,
			Price:     t.Price,
			Timestamp: t.Timestamp,
		}
		if stock != nil {
			v.StockSymbol = stock.Symbol
			v.StockName = stock.Name
		}
		views = append(views, v)
	}
	return views, nil
}
