// Package polymarket implements the read-only Polymarket public data client:
// Gamma for market metadata, CLOB for live orderbooks. Gamma encodes list
// fields as JSON strings inside JSON, so list decoding accepts both shapes.
package polymarket

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// StringList decodes a JSON array of strings that may itself arrive encoded
// as a JSON string, which is how Gamma ships outcomes and clobTokenIds.
type StringList []string

// UnmarshalJSON accepts ["a","b"], "[\"a\",\"b\"]", and null.
func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if inner == "" {
			*s = nil
			return nil
		}
		data = []byte(inner)
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// GammaMarket is the subset of Gamma market metadata the scanner uses.
type GammaMarket struct {
	Slug          string     `json:"slug"`
	Question      string     `json:"question"`
	Outcomes      StringList `json:"outcomes"`
	ClobTokenIDs  StringList `json:"clobTokenIds"`
	OutcomePrices StringList `json:"outcomePrices"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	LiquidityNum  float64    `json:"liquidityNum"`
	VolumeNum     float64    `json:"volumeNum"`
}

// IsBinary reports whether the market's outcomes are a strict Yes/No pair,
// in either order, case-insensitively.
func (m GammaMarket) IsBinary() bool {
	if len(m.Outcomes) != 2 {
		return false
	}
	a, b := m.Outcomes[0], m.Outcomes[1]
	return (strings.EqualFold(a, "yes") && strings.EqualFold(b, "no")) ||
		(strings.EqualFold(a, "no") && strings.EqualFold(b, "yes"))
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookPayload struct {
	Asks []bookLevel `json:"asks"`
}

// BestAsk is the lowest resting ask of one CLOB token book.
type BestAsk struct {
	Price float64
	Size  float64
}

// ClientConfig holds the Polymarket HTTP client configuration.
type ClientConfig struct {
	GammaURL       string
	CLOBURL        string
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryAttempts  int
	RateLimitRPS   float64
	Logger         *zap.Logger
}

// Client is the read-only Polymarket client. Gamma and CLOB share one rate
// limiter so the combined request rate stays bounded.
type Client struct {
	gamma   *resty.Client
	clob    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Polymarket public data client.
func NewClient(cfg *ClientConfig) *Client {
	newREST := func(baseURL string) *resty.Client {
		transport := &http.Transport{
			DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		}

		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(cfg.ReadTimeout).
			SetTransport(transport).
			SetRetryCount(cfg.RetryAttempts).
			SetRetryWaitTime(300 * time.Millisecond).
			SetRetryMaxWaitTime(600 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			}).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", cfg.UserAgent)
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		gamma:   newREST(cfg.GammaURL),
		clob:    newREST(cfg.CLOBURL),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:  cfg.Logger,
	}
}

func (c *Client) gammaMarkets(ctx context.Context, params map[string]string) ([]GammaMarket, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("gamma markets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gamma markets: status %d: %s", resp.StatusCode(), resp.String())
	}

	var markets []GammaMarket
	if err := json.Unmarshal(resp.Body(), &markets); err != nil {
		return nil, fmt.Errorf("decode gamma markets: %w", err)
	}

	RequestsTotal.WithLabelValues("gamma").Inc()
	return markets, nil
}

// MarketBySlug looks a market up through Gamma. The slug filter is tried
// first; some slugs only surface through free-text search, so that is the
// fallback, matched back to the exact slug.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (GammaMarket, error) {
	markets, err := c.gammaMarkets(ctx, map[string]string{"slug": slug})
	if err != nil {
		return GammaMarket{}, err
	}
	if len(markets) > 0 {
		return markets[0], nil
	}

	markets, err = c.gammaMarkets(ctx, map[string]string{"search": slug})
	if err != nil {
		return GammaMarket{}, err
	}
	for _, m := range markets {
		if m.Slug == slug {
			return m, nil
		}
	}

	return GammaMarket{}, fmt.Errorf("%w: slug %q", types.ErrMarketNotFound, slug)
}

// ListActiveMarkets lists open markets ordered by liquidity, most liquid
// first. Used by the candidate tooling, not the scan loop.
func (c *Client) ListActiveMarkets(ctx context.Context, limit int, minLiquidity float64) ([]GammaMarket, error) {
	markets, err := c.gammaMarkets(ctx, map[string]string{
		"limit":     strconv.Itoa(limit),
		"active":    "true",
		"closed":    "false",
		"archived":  "false",
		"order":     "liquidityNum",
		"ascending": "false",
	})
	if err != nil {
		return nil, err
	}

	out := make([]GammaMarket, 0, len(markets))
	for _, m := range markets {
		if m.LiquidityNum < minLiquidity {
			continue
		}
		out = append(out, m)
	}

	c.logger.Debug("poly-markets-listed",
		zap.Int("fetched", len(markets)),
		zap.Int("kept", len(out)))
	return out, nil
}

// TokenPair holds the CLOB token ids of a binary market's two outcomes.
type TokenPair struct {
	YesTokenID string
	NoTokenID  string
}

// ResolveSlugToTokens resolves a slug to its Yes/No CLOB token ids by zipping
// the outcomes and clobTokenIds lists. Markets without a strict Yes/No pair
// are rejected.
func (c *Client) ResolveSlugToTokens(ctx context.Context, slug string) (TokenPair, error) {
	market, err := c.MarketBySlug(ctx, slug)
	if err != nil {
		return TokenPair{}, err
	}

	if len(market.Outcomes) != len(market.ClobTokenIDs) || !market.IsBinary() {
		return TokenPair{}, fmt.Errorf("%w: slug %q outcomes %v", types.ErrNotBinary, slug, []string(market.Outcomes))
	}

	var pair TokenPair
	for i, outcome := range market.Outcomes {
		switch {
		case strings.EqualFold(outcome, "yes"):
			pair.YesTokenID = market.ClobTokenIDs[i]
		case strings.EqualFold(outcome, "no"):
			pair.NoTokenID = market.ClobTokenIDs[i]
		}
	}

	if pair.YesTokenID == "" || pair.NoTokenID == "" {
		return TokenPair{}, fmt.Errorf("%w: slug %q missing token ids", types.ErrNotBinary, slug)
	}

	return pair, nil
}

// FetchBestAsk fetches one token's CLOB book and returns its lowest ask.
// An empty ask side yields ErrEmptyBook so callers can fall back to metadata.
func (c *Client) FetchBestAsk(ctx context.Context, tokenID string) (BestAsk, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return BestAsk{}, err
	}

	resp, err := c.clob.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		Get("/book")
	if err != nil {
		return BestAsk{}, fmt.Errorf("clob book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return BestAsk{}, fmt.Errorf("clob book: status %d", resp.StatusCode())
	}

	var payload bookPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return BestAsk{}, fmt.Errorf("decode clob book: %w", err)
	}

	RequestsTotal.WithLabelValues("clob").Inc()

	best := BestAsk{}
	found := false
	for _, level := range payload.Asks {
		price, err := strconv.ParseFloat(level.Price, 64)
		if err != nil || price <= 0 || price >= 1 {
			continue
		}
		size, err := strconv.ParseFloat(level.Size, 64)
		if err != nil {
			size = 0
		}
		if !found || price < best.Price {
			best = BestAsk{Price: price, Size: size}
			found = true
		}
	}

	if !found {
		return BestAsk{}, types.ErrEmptyBook
	}
	return best, nil
}
