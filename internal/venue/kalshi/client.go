// Package kalshi implements the read-only Kalshi public market data client
// and its snapshot provider. The public orderbook endpoint exposes resting
// bids only, so asks are derived by complementarity across the two sides.
package kalshi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Market is the subset of the /markets list payload the scanner uses.
type Market struct {
	Ticker       string  `json:"ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	EventTitle   string  `json:"event_title"`
	Volume24h    float64 `json:"volume_24h"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"open_interest"`
}

// Text joins the market's display fields into one searchable string for the
// candidate ranker.
func (m Market) Text() string {
	out := ""
	for _, part := range []string{m.Title, m.Subtitle, m.EventTitle} {
		if part == "" {
			continue
		}
		if out != "" {
			out += " | "
		}
		out += part
	}
	return out
}

type marketsPage struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type orderbookPayload struct {
	Orderbook struct {
		Yes [][]float64 `json:"yes"`
		No  [][]float64 `json:"no"`
	} `json:"orderbook"`
}

// TopOfBook holds the best resting bids of both sides, already normalized
// to [0,1]. A nil bid means that side of the book is empty.
type TopOfBook struct {
	Ticker    string
	YesBid    *float64
	NoBid     *float64
	YesBidQty float64
	NoBidQty  float64
}

// ClientConfig holds the Kalshi HTTP client configuration.
type ClientConfig struct {
	BaseURL        string
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryAttempts  int
	RateLimitRPS   float64
	Logger         *zap.Logger
}

// Client is the read-only Kalshi public REST client. Every request waits on
// the rate limiter first; the retry budget covers transient failures and 429s.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Kalshi public API client.
func NewClient(cfg *ClientConfig) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
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

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:  cfg.Logger,
	}
}

// Paginator walks the open-markets listing one opaque-cursor page at a time.
// A fresh paginator is created per universe refresh; it is not restartable
// mid-walk.
type Paginator struct {
	client   *Client
	limit    int
	maxPages int
	pages    int
	cursor   string
	done     bool
}

// OpenMarkets returns a paginator over the venue's open markets.
func (c *Client) OpenMarkets(maxPages, limitPerPage int) *Paginator {
	return &Paginator{client: c, limit: limitPerPage, maxPages: maxPages}
}

// Next fetches the next page. Returns (nil, nil) once the venue signals
// end-of-list or the page budget is spent.
func (p *Paginator) Next(ctx context.Context) ([]Market, error) {
	if p.done || p.pages >= p.maxPages {
		return nil, nil
	}

	if err := p.client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := p.client.http.R().
		SetContext(ctx).
		SetQueryParam("status", "open").
		SetQueryParam("limit", fmt.Sprintf("%d", p.limit))
	if p.cursor != "" {
		req.SetQueryParam("cursor", p.cursor)
	}

	resp, err := req.Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list markets: status %d: %s", resp.StatusCode(), resp.String())
	}

	var page marketsPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decode markets page: %w", err)
	}

	p.pages++
	p.cursor = page.Cursor
	if page.Cursor == "" {
		p.done = true
	}

	RequestsTotal.WithLabelValues("markets").Inc()
	return page.Markets, nil
}

// ListOpenMarkets drains the paginator and returns every open market seen.
func (c *Client) ListOpenMarkets(ctx context.Context, maxPages, limitPerPage int) ([]Market, error) {
	pager := c.OpenMarkets(maxPages, limitPerPage)

	var out []Market
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			break
		}
		out = append(out, page...)
	}

	c.logger.Debug("kalshi-markets-listed", zap.Int("count", len(out)))
	return out, nil
}

// FetchTopOfBook fetches the orderbook for one ticker and reduces it to the
// best bid per side. Kalshi quotes prices as integer cents; levels are
// [price, quantity] pairs of resting bids.
func (c *Client) FetchTopOfBook(ctx context.Context, ticker string) (TopOfBook, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return TopOfBook{}, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/markets/" + ticker + "/orderbook")
	if err != nil {
		return TopOfBook{}, fmt.Errorf("fetch orderbook %s: %w", ticker, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return TopOfBook{}, fmt.Errorf("fetch orderbook %s: status %d", ticker, resp.StatusCode())
	}

	var payload orderbookPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return TopOfBook{}, fmt.Errorf("decode orderbook %s: %w", ticker, err)
	}

	top := TopOfBook{Ticker: ticker}
	top.YesBid, top.YesBidQty = bestBid(payload.Orderbook.Yes)
	top.NoBid, top.NoBidQty = bestBid(payload.Orderbook.No)

	RequestsTotal.WithLabelValues("orderbook").Inc()
	return top, nil
}

// bestBid picks the highest-priced level and normalizes cents to [0,1].
func bestBid(levels [][]float64) (*float64, float64) {
	var best *float64
	var qty float64

	for _, level := range levels {
		if len(level) < 2 {
			continue
		}
		price := level[0] / 100
		if price <= 0 || price >= 1 {
			continue
		}
		if best == nil || price > *best {
			p := price
			best = &p
			qty = level[1]
		}
	}

	return best, qty
}
