package cmd

import (
	"github.com/mselser95/arb-scanner/internal/venue/kalshi"
	"github.com/mselser95/arb-scanner/internal/venue/polymarket"
	"github.com/mselser95/arb-scanner/pkg/cache"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// Venue construction shared by the operator commands. The daemon wires its
// own providers through internal/app.

func newKalshiClient(cfg *config.Config, logger *zap.Logger) *kalshi.Client {
	return kalshi.NewClient(&kalshi.ClientConfig{
		BaseURL:        cfg.KalshiBaseURL,
		UserAgent:      cfg.HTTPUserAgent,
		ConnectTimeout: cfg.HTTPConnectTimeout,
		ReadTimeout:    cfg.HTTPReadTimeout,
		RetryAttempts:  cfg.HTTPRetryAttempts,
		RateLimitRPS:   cfg.KalshiRateLimitRPS,
		Logger:         logger,
	})
}

func newKalshiProvider(cfg *config.Config, logger *zap.Logger) *kalshi.Provider {
	return kalshi.NewProvider(&kalshi.ProviderConfig{
		Client:       newKalshiClient(cfg, logger),
		MaxPages:     cfg.KalshiPages,
		LimitPerPage: cfg.KalshiLimitPerPage,
		Concurrency:  cfg.FetchConcurrency,
		Logger:       logger,
	})
}

func newPolymarketClient(cfg *config.Config, logger *zap.Logger) *polymarket.Client {
	return polymarket.NewClient(&polymarket.ClientConfig{
		GammaURL:       cfg.PolyGammaURL,
		CLOBURL:        cfg.PolyCLOBURL,
		UserAgent:      cfg.HTTPUserAgent,
		ConnectTimeout: cfg.HTTPConnectTimeout,
		ReadTimeout:    cfg.HTTPReadTimeout,
		RetryAttempts:  cfg.HTTPRetryAttempts,
		RateLimitRPS:   cfg.KalshiRateLimitRPS,
		Logger:         logger,
	})
}

func newPolymarketProvider(cfg *config.Config, logger *zap.Logger, tokenCache cache.Cache, mappings []types.MarketMapping) (*polymarket.Provider, polymarket.TokenResolver) {
	client := newPolymarketClient(cfg, logger)
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
