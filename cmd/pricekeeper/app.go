package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"PriceKeeper/internal/collector"
	"PriceKeeper/internal/config"
	"PriceKeeper/internal/logger"
	"PriceKeeper/internal/resolver"
	"PriceKeeper/internal/store"
	"PriceKeeper/internal/symbols"
)

// app bundles the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	store    store.Store
	resolver *resolver.Resolver
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		FileEnabled:   cfg.Logging.FileEnabled,
		FilePath:      cfg.Logging.FilePath,
		RotationSize:  cfg.Logging.RotationSize,
		RetentionDays: cfg.Logging.RetentionDays,
		Service:       "pricekeeper",
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Database.PostgresURL, cfg.Database.MaxConns)
	default:
		return store.NewSQLiteStore(cfg.Database.SQLitePath)
	}
}

// newApp wires the store, provider client, symbol catalog and resolver. With
// degraded set, an unreachable store is replaced by store.Unavailable so
// requests still reach the provider.
func newApp(ctx context.Context, cfg *config.Config, degraded bool) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		if !degraded {
			return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
		}
		log.Warn().Err(err).Str("driver", cfg.Database.Driver).Msg("store unavailable, serving from provider only")
		st = store.NewUnavailable()
	}

	catalog, err := symbols.Load(cfg.Symbols.File)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load symbol catalog: %w", err)
	}

	fetcher := collector.NewYahooFetcher(
		collector.WithBaseURL(cfg.Provider.BaseURL),
		collector.WithTimeout(cfg.Provider.Timeout),
		collector.WithProxy(cfg.Provider.Proxy),
		collector.WithRateLimit(cfg.Provider.RateLimit),
		collector.WithRetry(cfg.Provider.RetryAttempts, cfg.Provider.RetryDelay),
		collector.WithUserAgent(cfg.Provider.UserAgent),
	)
	log.Debug().
		Str("provider", fetcher.Name()).
		Int("catalog", catalog.Len()).
		Bool("cache", cfg.CacheEnabled()).
		Msg("components wired")

	res := resolver.New(st, fetcher, symbols.NewMerger(catalog, fetcher),
		resolver.WithCache(cfg.CacheEnabled()))

	return &app{cfg: cfg, store: st, resolver: res}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close store")
	}
}
