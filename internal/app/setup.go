package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/arb-scanner/internal/botctl"
	"github.com/mselser95/arb-scanner/internal/daemon"
	"github.com/mselser95/arb-scanner/internal/mapping"
	"github.com/mselser95/arb-scanner/internal/paper"
	"github.com/mselser95/arb-scanner/internal/storage"
	"github.com/mselser95/arb-scanner/internal/venue/kalshi"
	"github.com/mselser95/arb-scanner/internal/venue/polymarket"
	"github.com/mselser95/arb-scanner/pkg/cache"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/healthprobe"
	"github.com/mselser95/arb-scanner/pkg/httpserver"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// New creates a daemon application instance. In cross mode the mapping file
// is loaded here; a missing or empty file is a configuration error.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	probe := healthprobe.New()

	store, err := setupStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	tokenCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	var mappings []types.MarketMapping
	if opts.UseCross {
		mappings, err = mapping.Load(cfg.MappingsPath)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	kalshiProvider := setupKalshiProvider(cfg, logger)
	polyProvider, resolver := setupPolymarketProvider(cfg, logger, tokenCache, mappings)

	if opts.UseCross {
		if err := mapping.ResolveTokens(ctx, resolver, mappings, logger); err != nil {
			cancel()
			return nil, err
		}
	}

	control := setupControlPlane(cfg, logger)
	engine := setupPaperExecutor(cfg, logger, store)

	d := daemon.New(cfg, daemon.Options{
		RunID:       uuid.NewString(),
		UseInternal: opts.UseInternal,
		UseCross:    opts.UseCross,
		Mappings:    mappings,
	}, store, kalshiProvider, polyProvider, engine, control, probe, logger)

	httpServer := httpserver.New(&httpserver.Config{
		Port:   cfg.HTTPPort,
		Logger: logger,
		Probe:  probe,
		Status: d,
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		probe:      probe,
		httpServer: httpServer,
		store:      store,
		control:    control,
		daemon:     d,
		mappings:   mappings,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func setupStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	return storage.NewSQLiteStore(&storage.SQLiteConfig{
		Path:          cfg.DBPath,
		BusyTimeoutMS: cfg.DBBusyTimeoutMS,
		Logger:        logger,
	})
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupKalshiProvider(cfg *config.Config, logger *zap.Logger) *kalshi.Provider {
	client := kalshi.NewClient(&kalshi.ClientConfig{
		BaseURL:        cfg.KalshiBaseURL,
		UserAgent:      cfg.HTTPUserAgent,
		ConnectTimeout: cfg.HTTPConnectTimeout,
		ReadTimeout:    cfg.HTTPReadTimeout,
		RetryAttempts:  cfg.HTTPRetryAttempts,
		RateLimitRPS:   cfg.KalshiRateLimitRPS,
		Logger:         logger,
	})

	return kalshi.NewProvider(&kalshi.ProviderConfig{
		Client:       client,
		MaxPages:     cfg.KalshiPages,
		LimitPerPage: cfg.KalshiLimitPerPage,
		Concurrency:  cfg.FetchConcurrency,
		Logger:       logger,
	})
}

func setupPolymarketProvider(cfg *config.Config, logger *zap.Logger, tokenCache cache.Cache, mappings []types.MarketMapping) (*polymarket.Provider, polymarket.TokenResolver) {
	client := polymarket.NewClient(&polymarket.ClientConfig{
		GammaURL:       cfg.PolyGammaURL,
		CLOBURL:        cfg.PolyCLOBURL,
		UserAgent:      cfg.HTTPUserAgent,
		ConnectTimeout: cfg.HTTPConnectTimeout,
		ReadTimeout:    cfg.HTTPReadTimeout,
		RetryAttempts:  cfg.HTTPRetryAttempts,
		RateLimitRPS:   cfg.KalshiRateLimitRPS,
		Logger:         logger,
	})

	resolver := polymarket.NewCachedResolver(client, tokenCache, cfg.TokenCacheTTL, logger)

	provider := polymarket.NewProvider(&polymarket.ProviderConfig{
		Client:      client,
		Resolver:    resolver,
		Mappings:    mappings,
		Concurrency: cfg.FetchConcurrency,
		Logger:      logger,
	})

	return provider, resolver
}

func setupControlPlane(cfg *config.Config, logger *zap.Logger) *botctl.Reader {
	defaults := botctl.Defaults(cfg.AlertThreshold)
	return botctl.NewReader(cfg.BotctlPath, defaults, 2*time.Second, logger)
}

func setupPaperExecutor(cfg *config.Config, logger *zap.Logger, store storage.Store) *paper.Executor {
	return paper.NewExecutor(store, paper.Config{
		SettleAfterSecs: int64(cfg.PaperSettleAfterSecs),
		MinFreeBalance:  cfg.PaperMinFreeBalance,
	}, logger)
}
