package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingSource struct {
	prices map[string]decimal.Decimal
	err    error
	asked  [][]string
}

func (s *countingSource) Prices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	s.asked = append(s.asked, symbols)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]decimal.Decimal)
	for _, sym := range symbols {
		if p, ok := s.prices[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

func newCache(t *testing.T, next *countingSource) (*CachedSource, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCachedSource(next, rdb, 5*time.Minute, zaptest.NewLogger(t)), mr
}

func TestCachedSource_ReadThrough(t *testing.T) {
	ctx := context.Background()
	upstream := &countingSource{prices: map[string]decimal.Decimal{"AAPL": decimal.RequireFromString("150.5")}}
	cache, mr := newCache(t, upstream)

	prices, err := cache.Prices(ctx, []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	assert.Len(t, prices, 1)

	cached, err := mr.Get("stock:AAPL:price")
	require.NoError(t, err)
	assert.Equal(t, "150.5", cached)
	assert.Equal(t, 5*time.Minute, mr.TTL("stock:AAPL:price"))

	prices, err = cache.Prices(ctx, []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	assert.True(t, prices["AAPL"].Equal(decimal.RequireFromString("150.5")))
	require.Len(t, upstream.asked, 2)
	assert.Equal(t, []string{"MSFT"}, upstream.asked[1], "cached symbols are not fetched again")

	mr.FastForward(6 * time.Minute)
	_, err = cache.Prices(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, upstream.asked[2])
}

func TestCachedSource_UpstreamFailure(t *testing.T) {
	ctx := context.Background()
	upstream := &countingSource{err: errors.New("quota exceeded")}
	cache, mr := newCache(t, upstream)

	_, err := cache.Prices(ctx, []string{"ACME"})
	assert.Error(t, err)

	require.NoError(t, mr.Set("stock:ACME:price", "12.34"))
	prices, err := cache.Prices(ctx, []string{"ACME", "BOLT"})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.True(t, prices["ACME"].Equal(decimal.RequireFromString("12.34")))
}

func TestCachedSource_RedisDown(t *testing.T) {
	upstream := &countingSource{prices: map[string]decimal.Decimal{"ACME": decimal.NewFromInt(3)}}
	cache, mr := newCache(t, upstream)
	mr.Close()

	prices, err := cache.Prices(context.Background(), []string{"ACME"})
	require.NoError(t, err)
	assert.True(t, prices["ACME"].Equal(decimal.NewFromInt(3)))
}

func TestCachedSource_CorruptEntry(t *testing.T) {
	upstream := &countingSource{prices: map[string]decimal.Decimal{"ACME": decimal.NewFromInt(3)}}
	cache, mr := newCache(t, upstream)
	require.NoError(t, mr.Set("stock:ACME:price", "garbage"))

	prices, err := cache.Prices(context.Background(), []string{"ACME"})
	require.NoError(t, err)
	assert.True(t, prices["ACME"].Equal(decimal.NewFromInt(3)))
}
