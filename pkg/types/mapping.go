package types

// MarketMapping is one curated cross-venue equivalence. Token ids are optional
// until resolved through Gamma metadata.
type MarketMapping struct {
	KalshiTicker         string `json:"kalshi_ticker"`
	PolymarketSlug       string `json:"polymarket_slug"`
	PolymarketYesTokenID string `json:"polymarket_yes_token_id,omitempty"`
	PolymarketNoTokenID  string `json:"polymarket_no_token_id,omitempty"`
}

// Resolved reports whether both CLOB token ids are known.
func (m MarketMapping) Resolved() bool {
	return m.PolymarketYesTokenID != "" && m.PolymarketNoTokenID != ""
}
