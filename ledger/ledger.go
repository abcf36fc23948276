// Package ledger holds the trade-execution and portfolio-accounting rules:
// weighted-average cost on buys, realized profit on sells, valuation against
// current prices and reconciliation of refreshed prices.
package ledger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// PriceScale is the number of decimal places prices and profits are
// presented with.
const PriceScale = 2

type Ledger struct {
	store  Store
	prices PriceSource
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, prices PriceSource, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		prices: prices,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
