package types

// Signal kinds.
const (
	SignalKalshiInternal = "kalshi_internal"
	SignalCrossVenue     = "cross_venue"
)

// Signal is an append-only record of an evaluator classification worth
// persisting: an opportunity or a near-miss. Never mutated after insert.
type Signal struct {
	TS        int64
	Kind      string
	AVenue    string
	AMarketID string
	BVenue    string // empty for internal signals
	BMarketID string
	SumPrice  float64
	RawEdge   float64
	BufEdge   float64
	ExecSize  float64
	Details   string
}
