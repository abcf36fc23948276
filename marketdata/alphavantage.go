package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	AlphaVantageURL = "https://www.alphavantage.co"
	quoteWorkers    = 4
)

type alphaVantageResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// AlphaVantageSource fetches one GLOBAL_QUOTE per symbol. Symbols whose
// quote cannot be fetched or parsed are left out of the result.
type AlphaVantageSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewAlphaVantageSource(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *AlphaVantageSource {
	if baseURL == "" {
		baseURL = AlphaVantageURL
	}
	return &AlphaVantageSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("alphavantage"),
	}
}

func (s *AlphaVantageSource) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	var (
		mu     sync.Mutex
		prices = make(map[string]decimal.Decimal, len(symbols))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(quoteWorkers)
	for _, symbol := range symbols {
		g.Go(func() error {
			price, err := s.quote(gCtx, symbol)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("quote failed", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			prices[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

func (s *AlphaVantageSource) quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
		"apikey":   {s.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("alpha vantage: %s", resp.Status)
	}

	var result alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stock data: %w", err)
	}
	if result.GlobalQuote.Price == "" {
		if msg := result.Note + result.Information; msg != "" {
			return decimal.Zero, fmt.Errorf("alpha vantage: %s", msg)
		}
		return decimal.Zero, fmt.Errorf("stock %s not found", symbol)
	}
	return decimal.NewFromString(result.GlobalQuote.Price)
}
