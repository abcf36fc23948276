package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-ledger/ledger"
)

// CachedSource is a Redis read-through cache in front of another source.
// Redis failures are logged and bypass the cache.
type CachedSource struct {
	next   ledger.PriceSource
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedSource(next ledger.PriceSource, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedSource {
	return &CachedSource{next: next, rdb: rdb, ttl: ttl, logger: logger.Named("price-cache")}
}

func priceKey(symbol string) string {
	return fmt.Sprintf("stock:%s:price", symbol)
}

func (c *CachedSource) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices, missing := c.cached(ctx, symbols)
	if len(missing) == 0 {
		return prices, nil
	}

	fresh, err := c.next.Prices(ctx, missing)
	if err != nil {
		if len(prices) > 0 {
			c.logger.Warn("upstream failed, serving cached prices only", zap.Error(err))
			return prices, nil
		}
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for symbol, price := range fresh {
		prices[symbol] = price
		pipe.Set(ctx, priceKey(symbol), price.String(), c.ttl)
	}
	if len(fresh) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Warn("failed to cache prices", zap.Error(err))
		}
	}
	return prices, nil
}

// cached returns the prices found in Redis and the symbols that were not.
func (c *CachedSource) cached(ctx context.Context, symbols []string) (map[string]decimal.Decimal, []string) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = priceKey(s)
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("price cache unavailable", zap.Error(err))
		}
		return prices, symbols
	}

	var missing []string
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			missing = append(missing, symbols[i])
			continue
		}
		price, err := decimal.NewFromString(str)
		if err != nil {
			missing = append(missing, symbols[i])
			continue
		}
		prices[symbols[i]] = price
	}
	return prices, missing
}
