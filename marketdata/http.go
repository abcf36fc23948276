// Package marketdata provides ledger.PriceSource implementations.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultInitialInterval = 500 * time.Millisecond

// HTTPSource queries a quote service exposing
// GET /prices?symbols=A,B -> {"A": 1.23, "B": 4.56}.
type HTTPSource struct {
	baseURL         string
	client          *http.Client
	maxElapsed      time.Duration
	initialInterval time.Duration
	logger          *zap.Logger
}

// NewHTTPSource bounds each request by timeout and all retries together by
// the same duration.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{Timeout: timeout},
		maxElapsed:      timeout,
		initialInterval: defaultInitialInterval,
		logger:          logger.Named("marketdata"),
	}
}

func (s *HTTPSource) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	u := s.baseURL + "/prices?" + url.Values{"symbols": {strings.Join(symbols, ",")}}.Encode()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialInterval

	notify := func(err error, d time.Duration) {
		s.logger.Warn("price request failed, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	return backoff.Retry(ctx, func() (map[string]decimal.Decimal, error) {
		return s.fetch(ctx, u)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(s.maxElapsed),
		backoff.WithNotify(notify))
}

func (s *HTTPSource) fetch(ctx context.Context, u string) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("quote service: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("quote service: %s", resp.Status))
	}

	var raw map[string]*decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode prices: %w", err))
	}
	// A null price means the service has no quote for the symbol.
	prices := make(map[string]decimal.Decimal, len(raw))
	for symbol, price := range raw {
		if price != nil {
			prices[symbol] = *price
		}
	}
	return prices, nil
}
