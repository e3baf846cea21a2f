package polymarket

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mselser95/arb-scanner/internal/venue"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProviderConfig holds the Polymarket snapshot provider configuration.
type ProviderConfig struct {
	Client      *Client
	Resolver    TokenResolver
	Mappings    []types.MarketMapping
	Concurrency int
	Logger      *zap.Logger
}

// Provider produces snapshots for the curated mapping universe. Live CLOB
// best asks are preferred; when a book is empty or unreachable the leg falls
// back to Gamma metadata prices with zero size, which keeps the market
// visible to near-miss logging while never sizing an executable trade on it.
type Provider struct {
	client      *Client
	resolver    TokenResolver
	mappings    []types.MarketMapping
	concurrency int
	logger      *zap.Logger
}

// NewProvider creates a mapping-driven Polymarket snapshot provider.
func NewProvider(cfg *ProviderConfig) *Provider {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Provider{
		client:      cfg.Client,
		resolver:    cfg.Resolver,
		mappings:    cfg.Mappings,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

// Name returns the venue label.
func (p *Provider) Name() string {
	return types.VenuePolymarket
}

// FetchSnapshots fetches snapshots for the provider's full mapping universe.
func (p *Provider) FetchSnapshots(ctx context.Context) ([]types.MarketSnapshot, error) {
	snaps, _, err := p.FetchMappings(ctx, p.mappings)
	return snaps, err
}

// FetchMappings fetches one snapshot per mapping, concurrently, sorted by
// market id. Mappings whose slug cannot be resolved to tokens are dropped
// and counted; per-leg book failures degrade to metadata pricing instead.
func (p *Provider) FetchMappings(ctx context.Context, mappings []types.MarketMapping) ([]types.MarketSnapshot, venue.FetchStats, error) {
	start := time.Now()
	stats := venue.FetchStats{Total: len(mappings)}

	var mu sync.Mutex
	snaps := make([]types.MarketSnapshot, 0, len(mappings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, m := range mappings {
		m := m
		g.Go(func() error {
			snap, err := p.fetchOne(gctx, m)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.Errors++
				reason := venue.DropFetchError
				if errors.Is(err, types.ErrNotBinary) {
					reason = venue.DropNotBinary
				} else if errors.Is(err, types.ErrMarketNotFound) {
					reason = venue.DropMissingTokens
				}
				venue.MarketsDroppedTotal.WithLabelValues(types.VenuePolymarket, reason).Inc()
				p.logger.Debug("poly-fetch-error", zap.String("slug", m.PolymarketSlug), zap.Error(err))
				return nil
			}

			if snap.Book.YesAsk == nil && snap.Book.NoAsk == nil {
				stats.NoPrices++
				venue.MarketsDroppedTotal.WithLabelValues(types.VenuePolymarket, venue.DropMissingPrices).Inc()
				return nil
			}

			if snap.Book.TwoSided() {
				stats.TwoSided++
			} else {
				stats.OneSided++
			}
			snaps = append(snaps, snap)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Market.MarketID < snaps[j].Market.MarketID
	})

	stats.OK = len(snaps)
	venue.SnapshotsFetchedTotal.WithLabelValues(types.VenuePolymarket).Add(float64(len(snaps)))
	venue.FetchDurationSeconds.WithLabelValues(types.VenuePolymarket).Observe(time.Since(start).Seconds())

	return snaps, stats, nil
}

func (p *Provider) fetchOne(ctx context.Context, m types.MarketMapping) (types.MarketSnapshot, error) {
	pair := TokenPair{YesTokenID: m.PolymarketYesTokenID, NoTokenID: m.PolymarketNoTokenID}
	if !m.Resolved() {
		resolved, err := p.resolver.ResolveSlugToTokens(ctx, m.PolymarketSlug)
		if err != nil {
			return types.MarketSnapshot{}, err
		}
		pair = resolved
	}

	book := types.OrderBookTop{}
	question := m.PolymarketSlug

	// Gamma metadata is fetched at most once per mapping, and only when a
	// leg needs the fallback price.
	var gamma *GammaMarket

	yesErr := p.fillLeg(ctx, pair.YesTokenID, &book.YesAsk, &book.YesSize)
	noErr := p.fillLeg(ctx, pair.NoTokenID, &book.NoAsk, &book.NoSize)

	if yesErr != nil || noErr != nil {
		market, err := p.client.MarketBySlug(ctx, m.PolymarketSlug)
		if err != nil {
			// Both legs dead and no metadata either: the market is gone.
			if book.YesAsk == nil && book.NoAsk == nil {
				return types.MarketSnapshot{}, err
			}
		} else {
			gamma = &market
			if yesErr != nil {
				p.fallbackLeg(&book.YesAsk, market, "yes")
			}
			if noErr != nil {
				p.fallbackLeg(&book.NoAsk, market, "no")
			}
		}
	}

	if gamma != nil && gamma.Question != "" {
		question = gamma.Question
	}

	return types.MarketSnapshot{
		Market: types.Market{
			Venue:    types.VenuePolymarket,
			MarketID: m.PolymarketSlug,
			Question: question,
			Outcomes: []string{"Yes", "No"},
		},
		Book: book,
		TS:   time.Now().Unix(),
	}, nil
}

// fillLeg fetches one token's best CLOB ask into the book. Any failure,
// including an empty book, is returned so the caller can degrade the leg.
func (p *Provider) fillLeg(ctx context.Context, tokenID string, ask **float64, size *float64) error {
	if tokenID == "" {
		return types.ErrEmptyBook
	}

	best, err := p.client.FetchBestAsk(ctx, tokenID)
	if err != nil {
		return err
	}

	price := best.Price
	*ask = &price
	*size = best.Size
	return nil
}

// fallbackLeg prices one leg from Gamma outcomePrices with zero size.
func (p *Provider) fallbackLeg(ask **float64, market GammaMarket, outcome string) {
	if len(market.OutcomePrices) != len(market.Outcomes) {
		return
	}

	for i, o := range market.Outcomes {
		if !strings.EqualFold(o, outcome) {
			continue
		}
		price, err := strconv.ParseFloat(market.OutcomePrices[i], 64)
		if err != nil || price <= 0 || price >= 1 {
			return
		}
		*ask = &price
		GammaFallbacksTotal.Inc()
		return
	}
}
