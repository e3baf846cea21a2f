package candidates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/mselser95/arb-scanner/internal/venue/kalshi"
	"github.com/mselser95/arb-scanner/internal/venue/polymarket"
)

// PolyMarket is one Polymarket entry from the shortlist JSON produced by
// the list-markets command.
type PolyMarket struct {
	Slug      string                `json:"slug"`
	Question  string                `json:"question"`
	Outcomes  polymarket.StringList `json:"outcomes,omitempty"`
	Liquidity float64               `json:"liquidityNum,omitempty"`
}

// KalshiText is one Kalshi market reduced to its searchable text.
type KalshiText struct {
	Ticker string `json:"ticker"`
	Text   string `json:"text"`
}

// Candidate is one scored Kalshi match for a Polymarket question.
type Candidate struct {
	Score        float64 `json:"score"`
	KalshiTicker string  `json:"kalshi_ticker"`
	KalshiText   string  `json:"kalshi_text"`
}

// Ranked pairs a Polymarket entry with its top candidates, best first.
type Ranked struct {
	Polymarket PolyMarket  `json:"polymarket"`
	Candidates []Candidate `json:"candidates"`
}

// LoadPolyList reads the Polymarket shortlist. Entries without both a slug
// and a question are dropped.
func LoadPolyList(path string) ([]PolyMarket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read poly list: %w", err)
	}

	var raw []PolyMarket
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse poly list %s: %w", path, err)
	}

	out := make([]PolyMarket, 0, len(raw))
	for _, m := range raw {
		m.Slug = strings.TrimSpace(m.Slug)
		m.Question = strings.TrimSpace(m.Question)
		if m.Slug == "" || m.Question == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// KalshiTexts reduces markets to ticker + searchable text, dropping entries
// with neither.
func KalshiTexts(markets []kalshi.Market) []KalshiText {
	out := make([]KalshiText, 0, len(markets))
	for _, m := range markets {
		ticker := strings.TrimSpace(m.Ticker)
		text := m.Text()
		if ticker == "" || text == "" {
			continue
		}
		out = append(out, KalshiText{Ticker: ticker, Text: text})
	}
	return out
}

// LoadOrRefreshKalshiCache returns the cached open-market list, refetching
// through the client when refresh is set or the cache is missing. The fetch
// result is written back so iterating on the shortlist stays cheap.
func LoadOrRefreshKalshiCache(ctx context.Context, client *kalshi.Client, cachePath string, refresh bool, maxPages, limitPerPage int) ([]kalshi.Market, error) {
	if !refresh {
		if data, err := os.ReadFile(cachePath); err == nil {
			var cached []kalshi.Market
			if err := json.Unmarshal(data, &cached); err == nil && len(cached) > 0 {
				return cached, nil
			}
		}
	}

	markets, err := client.ListOpenMarkets(ctx, maxPages, limitPerPage)
	if err != nil {
		return nil, fmt.Errorf("fetch kalshi markets: %w", err)
	}

	kept := make([]kalshi.Market, 0, len(markets))
	for _, m := range markets {
		if strings.TrimSpace(m.Ticker) == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(m.Ticker), "KXMVE") {
			continue
		}
		kept = append(kept, m)
	}

	if dir := filepath.Dir(cachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write kalshi cache: %w", err)
	}

	return kept, nil
}

// Rank scores every Kalshi text against every Polymarket question and keeps
// the top-N candidates per slug, best first. Zero scores never appear.
func Rank(poly []PolyMarket, texts []KalshiText, topN int) []Ranked {
	if topN < 1 {
		topN = 1
	}

	out := make([]Ranked, 0, len(poly))
	for _, pm := range poly {
		scored := make([]Candidate, 0, len(texts))
		for _, kt := range texts {
			s := Score(pm.Question, kt.Text)
			if s <= 0 {
				continue
			}
			scored = append(scored, Candidate{Score: s, KalshiTicker: kt.Ticker, KalshiText: kt.Text})
		}

		sort.Slice(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				return scored[i].Score > scored[j].Score
			}
			return scored[i].KalshiTicker < scored[j].KalshiTicker
		})

		if len(scored) > topN {
			scored = scored[:topN]
		}
		out = append(out, Ranked{Polymarket: pm, Candidates: scored})
	}

	return out
}
