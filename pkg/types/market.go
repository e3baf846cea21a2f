package types

import "strings"

// Venue labels as they appear in snapshots, signals, and the mapping file.
const (
	VenueKalshi     = "Kalshi"
	VenuePolymarket = "Polymarket"
)

// Market identifies a prediction market on a single venue.
type Market struct {
	Venue    string
	MarketID string
	Question string
	Outcomes []string
}

// IsBinary reports whether the market has exactly the Yes/No outcome pair,
// case-insensitive. Only binary markets may reach the evaluator.
func (m Market) IsBinary() bool {
	if len(m.Outcomes) != 2 {
		return false
	}

	a := strings.ToLower(strings.TrimSpace(m.Outcomes[0]))
	b := strings.ToLower(strings.TrimSpace(m.Outcomes[1]))

	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

// OrderBookTop holds ask-side top-of-book prices and sizes. Prices are
// probabilities in [0,1]; nil means that side is unknown. For venues that only
// publish bids, asks are derived by complementarity before reaching here.
type OrderBookTop struct {
	YesAsk  *float64
	NoAsk   *float64
	YesSize float64
	NoSize  float64
}

// TwoSided reports whether both ask prices are known.
func (b OrderBookTop) TwoSided() bool {
	return b.YesAsk != nil && b.NoAsk != nil
}

// OneSided reports whether exactly one ask price is known.
func (b OrderBookTop) OneSided() bool {
	return (b.YesAsk != nil) != (b.NoAsk != nil)
}

// MarketSnapshot pairs a market with its top-of-book at fetch time.
// Immutable once created. TS is unix seconds at fetch completion.
type MarketSnapshot struct {
	Market Market
	Book   OrderBookTop
	TS     int64
}

// NormalizeQuestion lowercases and collapses whitespace. It is the pairing key
// for question-equality matching.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
