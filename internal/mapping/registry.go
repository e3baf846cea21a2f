// Package mapping loads the curated cross-venue equivalence file and fills
// in missing CLOB token ids through Gamma metadata.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mselser95/arb-scanner/internal/venue/polymarket"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// Load reads the mapping file. A missing or empty file yields ErrNoMappings;
// callers in cross mode treat that as a configuration error, other callers
// may proceed without mappings.
func Load(path string) ([]types.MarketMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrNoMappings, path)
		}
		return nil, fmt.Errorf("read mappings %s: %w", path, err)
	}

	var mappings []types.MarketMapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("parse mappings %s: %w", path, err)
	}

	out := make([]types.MarketMapping, 0, len(mappings))
	for i, m := range mappings {
		if m.KalshiTicker == "" || m.PolymarketSlug == "" {
			return nil, fmt.Errorf("mappings %s: entry %d missing ticker or slug", path, i)
		}
		out = append(out, m)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNoMappings, path)
	}

	return out, nil
}

// Save writes the mapping file atomically via a temp file rename.
func Save(path string, mappings []types.MarketMapping) error {
	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write mappings %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename mappings %s: %w", path, err)
	}
	return nil
}

// ResolveTokens fills missing token ids in place. A slug that resolves to a
// non-binary market, or that the venue does not know, is a curation error and
// fails the call after the whole pass so every bad entry gets reported at
// once. Transport failures degrade that mapping to slug-only pricing with a
// warning instead.
func ResolveTokens(ctx context.Context, resolver polymarket.TokenResolver, mappings []types.MarketMapping, logger *zap.Logger) error {
	var bad []string

	for i := range mappings {
		m := &mappings[i]
		if m.Resolved() {
			continue
		}

		pair, err := resolver.ResolveSlugToTokens(ctx, m.PolymarketSlug)
		if err != nil {
			if errors.Is(err, types.ErrNotBinary) || errors.Is(err, types.ErrMarketNotFound) {
				bad = append(bad, fmt.Sprintf("%s: %v", m.PolymarketSlug, err))
				continue
			}
			logger.Warn("mapping-token-resolution-degraded",
				zap.String("slug", m.PolymarketSlug),
				zap.Error(err))
			continue
		}

		m.PolymarketYesTokenID = pair.YesTokenID
		m.PolymarketNoTokenID = pair.NoTokenID
		logger.Debug("mapping-tokens-resolved",
			zap.String("kalshi_ticker", m.KalshiTicker),
			zap.String("slug", m.PolymarketSlug))
	}

	if len(bad) > 0 {
		return fmt.Errorf("unusable mappings: %s", strings.Join(bad, "; "))
	}
	return nil
}
