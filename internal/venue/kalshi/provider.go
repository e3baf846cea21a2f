package kalshi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mselser95/arb-scanner/internal/venue"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ticker hygiene: sports multigame bundles whose books are routinely stale.
var (
	blacklistPrefixes   = []string{"KXMVE", "KXMVESPORTS"}
	blacklistSubstrings = []string{"MULTIGAMEEXTENDED"}
	activitySortKeys    = []func(Market) float64{
		func(m Market) float64 { return m.Volume24h },
		func(m Market) float64 { return m.Volume },
		func(m Market) float64 { return m.OpenInterest },
	}
)

// ProviderConfig holds the Kalshi snapshot provider configuration.
type ProviderConfig struct {
	Client       *Client
	MaxPages     int
	LimitPerPage int
	Concurrency  int
	Logger       *zap.Logger
}

// Provider turns Kalshi listings and orderbooks into MarketSnapshots. Asks
// are derived from the complementary side's best bid, sizes crossed the same
// way: yes_ask = 1 - no_bid with the no-bid quantity, and vice versa. The
// rule is applied to every market in a run.
type Provider struct {
	client       *Client
	maxPages     int
	limitPerPage int
	concurrency  int
	logger       *zap.Logger

	mu     sync.Mutex
	titles map[string]string // ticker -> title, refreshed on each listing
}

// NewProvider creates a Kalshi snapshot provider.
func NewProvider(cfg *ProviderConfig) *Provider {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Provider{
		client:       cfg.Client,
		maxPages:     cfg.MaxPages,
		limitPerPage: cfg.LimitPerPage,
		concurrency:  concurrency,
		logger:       cfg.Logger,
		titles:       make(map[string]string),
	}
}

// Name returns the venue label.
func (p *Provider) Name() string {
	return types.VenueKalshi
}

// ListTickers lists the venue's open markets, applies the ticker blacklist,
// and returns the universe sorted lexicographically. Titles are cached for
// later snapshot builds.
func (p *Provider) ListTickers(ctx context.Context) ([]string, error) {
	markets, err := p.client.ListOpenMarkets(ctx, p.maxPages, p.limitPerPage)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(markets))
	tickers := make([]string, 0, len(markets))
	for _, m := range markets {
		if m.Ticker == "" || blacklisted(m.Ticker) {
			continue
		}
		tickers = append(tickers, m.Ticker)
		titles[m.Ticker] = m.Title
	}
	sort.Strings(tickers)

	p.mu.Lock()
	p.titles = titles
	p.mu.Unlock()

	return tickers, nil
}

// FetchSnapshots lists open markets sorted by trading activity and fetches
// snapshots for them. This is the capability-contract path used by one-shot
// scans; the daemon drives batches through FetchTickers instead.
func (p *Provider) FetchSnapshots(ctx context.Context) ([]types.MarketSnapshot, error) {
	markets, err := p.client.ListOpenMarkets(ctx, p.maxPages, p.limitPerPage)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(markets))
	for _, m := range markets {
		titles[m.Ticker] = m.Title
	}
	p.mu.Lock()
	p.titles = titles
	p.mu.Unlock()

	tickers := make([]string, 0, len(markets))
	for _, m := range SortByActivity(Blacklist(markets)) {
		tickers = append(tickers, m.Ticker)
	}

	snaps, _, err := p.FetchTickers(ctx, tickers)
	return snaps, err
}

// FetchTickers fetches top-of-book snapshots for a fixed ticker batch.
// Per-ticker fetches run concurrently; the result is sorted by market id so
// the output set is deterministic regardless of completion order.
func (p *Provider) FetchTickers(ctx context.Context, tickers []string) ([]types.MarketSnapshot, venue.FetchStats, error) {
	start := time.Now()
	stats := venue.FetchStats{Total: len(tickers)}

	var mu sync.Mutex
	snaps := make([]types.MarketSnapshot, 0, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			top, err := p.client.FetchTopOfBook(gctx, ticker)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.Errors++
				venue.MarketsDroppedTotal.WithLabelValues(types.VenueKalshi, venue.DropFetchError).Inc()
				p.logger.Debug("kalshi-fetch-error", zap.String("ticker", ticker), zap.Error(err))
				return nil
			}

			snap, ok := p.snapshotFromTop(ticker, top)
			if !ok {
				stats.NoPrices++
				venue.MarketsDroppedTotal.WithLabelValues(types.VenueKalshi, venue.DropMissingPrices).Inc()
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
	venue.SnapshotsFetchedTotal.WithLabelValues(types.VenueKalshi).Add(float64(len(snaps)))
	venue.FetchDurationSeconds.WithLabelValues(types.VenueKalshi).Observe(time.Since(start).Seconds())

	return snaps, stats, nil
}

// snapshotFromTop derives ask-side prices from the bid-only book. A book
// with no bids on either side yields no snapshot.
func (p *Provider) snapshotFromTop(ticker string, top TopOfBook) (types.MarketSnapshot, bool) {
	book := types.OrderBookTop{}

	if top.NoBid != nil {
		ask := venue.AskFromBid(*top.NoBid)
		book.YesAsk = &ask
		book.YesSize = top.NoBidQty
	}
	if top.YesBid != nil {
		ask := venue.AskFromBid(*top.YesBid)
		book.NoAsk = &ask
		book.NoSize = top.YesBidQty
	}

	if book.YesAsk == nil && book.NoAsk == nil {
		return types.MarketSnapshot{}, false
	}

	p.mu.Lock()
	title := p.titles[ticker]
	p.mu.Unlock()
	if title == "" {
		title = ticker
	}

	return types.MarketSnapshot{
		Market: types.Market{
			Venue:    types.VenueKalshi,
			MarketID: ticker,
			Question: title,
			Outcomes: []string{"Yes", "No"},
		},
		Book: book,
		TS:   time.Now().Unix(),
	}, true
}

// Blacklist drops tickers matching the hygiene lists.
func Blacklist(markets []Market) []Market {
	out := make([]Market, 0, len(markets))
	for _, m := range markets {
		if blacklisted(m.Ticker) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func blacklisted(ticker string) bool {
	for _, prefix := range blacklistPrefixes {
		if strings.HasPrefix(ticker, prefix) {
			return true
		}
	}
	for _, sub := range blacklistSubstrings {
		if strings.Contains(ticker, sub) {
			return true
		}
	}
	return false
}

// SortByActivity orders markets by the first activity key with any positive
// value: 24h volume, then total volume, then open interest. Markets inactive
// on the chosen key are dropped; if every key is dead, the input is returned
// unchanged.
func SortByActivity(markets []Market) []Market {
	for _, key := range activitySortKeys {
		active := make([]Market, 0, len(markets))
		for _, m := range markets {
			if key(m) > 0 {
				active = append(active, m)
			}
		}
		if len(active) == 0 {
			continue
		}

		sort.SliceStable(active, func(i, j int) bool {
			return key(active[i]) > key(active[j])
		})
		return active
	}
	return markets
}
