package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-ledger/models"
)

type RefreshResult struct {
	SuccessCount int      `json:"success_count"`
	FailCount    int      `json:"fail_count"`
	Failed       []string `json:"failed,omitempty"`
}

// RefreshPrices pulls prices for every stock in one batched call and applies
// them. Symbols the source does not return keep their previous price and are
// counted as failures; an unreachable source fails every symbol but is not an
// error. Only storage failures are returned.
func (l *Ledger) RefreshPrices(ctx context.Context) (RefreshResult, error) {
	var res RefreshResult

	stocks, err := l.store.ListStocks(ctx)
	if err != nil {
		return res, fmt.Errorf("list stocks: %w", err)
	}
	if len(stocks) == 0 {
		return res, nil
	}

	symbols := make([]string, len(stocks))
	for i, s := range stocks {
		symbols[i] = s.Symbol
	}
	prices := l.fetchPrices(ctx, symbols)

	now := l.now().UTC()
	var history []models.StockPrice
	for i := range stocks {
		s := &stocks[i]
		price, ok := prices[s.Symbol]
		if !ok {
			res.FailCount++
			res.Failed = append(res.Failed, s.Symbol)
			l.logger.Warn("price missing for symbol", zap.String("symbol", s.Symbol))
			continue
		}
		s.Price = decimal.NewNullDecimal(price)
		res.SuccessCount++
		history = append(history, models.StockPrice{
			StockID:   s.ID,
			Symbol:    s.Symbol,
			Price:     price,
			Timestamp: now,
		})
	}

	priced := make([]models.Stock, 0, len(stocks))
	for _, s := range stocks {
		if s.Price.Valid {
			priced = append(priced, s)
		}
	}
	if len(priced) > 0 {
		if err := l.store.SaveStocks(ctx, priced); err != nil {
			return res, fmt.Errorf("save stocks: %w", err)
		}
	}
	if len(history) > 0 {
		if err := l.store.RecordPrices(ctx, history); err != nil {
			return res, fmt.Errorf("record price history: %w", err)
		}
	}

	l.logger.Info("price refresh finished",
		zap.Int("success", res.SuccessCount),
		zap.Int("failed", res.FailCount))
	return res, nil
}

func (l *Ledger) fetchPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	if l.prices == nil {
		l.logger.Warn("no price source configured")
		return nil
	}
	prices, err := l.prices.Prices(ctx, symbols)
	if err != nil {
		l.logger.Warn("price source unavailable", zap.Strings("symbols", symbols), zap.Error(err))
		return nil
	}
	return prices
}
