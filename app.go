package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock-ledger/config"
	"stock-ledger/database"
	"stock-ledger/ledger"
	"stock-ledger/marketdata"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	store  *database.Store
	rdb    *redis.Client
	ledger *ledger.Ledger
}

func newApp(ctx context.Context) (*app, error) {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.LogDebug || *debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := cfg.OpenDB(logger)
	if err != nil {
		return nil, err
	}
	rdb, err := cfg.OpenRedis(ctx)
	if err != nil {
		return nil, err
	}

	store := database.NewStore(db, logger)
	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  store,
		rdb:    rdb,
	}
	a.ledger = ledger.New(store, a.priceSource(), logger)
	return a, nil
}

func (a *app) priceSource() ledger.PriceSource {
	var source ledger.PriceSource
	switch a.cfg.MarketDataProvider {
	case config.ProviderAlphaVantage:
		source = marketdata.NewAlphaVantageSource(marketdata.AlphaVantageURL, a.cfg.AlphaVantageAPIKey, a.cfg.MarketDataTimeout, a.logger)
	default:
		source = marketdata.NewHTTPSource(a.cfg.MarketDataURL, a.cfg.MarketDataTimeout, a.logger)
	}
	if a.rdb != nil && a.cfg.PriceCacheTTL > 0 {
		source = marketdata.NewCachedSource(source, a.rdb, a.cfg.PriceCacheTTL, a.logger)
	}
	return source
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.logger.Sync()
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
