package arbitrage

import (
	"fmt"
	"strings"

	"github.com/mselser95/arb-scanner/pkg/types"
)

// Opportunity is one row of the one-shot scan report: a single-direction
// hedge (buy YES on venue A, buy NO on venue B) with its cost breakdown.
// Unlike the daemon's evaluator, the one-shot scan reports every priced
// pair; thresholds are applied by the caller.
type Opportunity struct {
	MarketPair         string
	BestYesPriceA      float64
	BestNoPriceB       float64
	HedgeCost          float64
	EstimatedFees      float64
	TopOfBookLiquidity float64
	MarketMismatch     bool
	NetEdge            float64
}

// String renders the report row. Net edge is shown as a percentage.
func (o Opportunity) String() string {
	mismatch := "NO"
	if o.MarketMismatch {
		mismatch = "YES"
	}

	return fmt.Sprintf(
		"%s | best_yes_price_A=%.4f | best_no_price_B=%.4f | hedge_cost=%.4f | "+
			"estimated_fees=%.4f | top_of_book_liquidity=%.2f | market_mismatch=%s | net_edge=%.2f%%",
		o.MarketPair,
		o.BestYesPriceA,
		o.BestNoPriceB,
		o.HedgeCost,
		o.EstimatedFees,
		o.TopOfBookLiquidity,
		mismatch,
		o.NetEdge*100,
	)
}

// ComputeOpportunities pairs venue-A snapshots against venue-B snapshots by
// normalized question text and prices the YES@A + NO@B hedge for each pair.
// Pairs with an absent price on either leg are skipped. Mismatched outcome
// sets are reported, not dropped, so the operator can spot bad pairings.
func ComputeOpportunities(marketsA, marketsB []types.MarketSnapshot, feeBufferBPS int) []Opportunity {
	index := make(map[string]types.MarketSnapshot, len(marketsB))
	for _, ms := range marketsB {
		index[types.NormalizeQuestion(ms.Market.Question)] = ms
	}

	opportunities := make([]Opportunity, 0, len(marketsA))

	for _, snapA := range marketsA {
		snapB, ok := index[types.NormalizeQuestion(snapA.Market.Question)]
		if !ok {
			continue
		}

		if snapA.Book.YesAsk == nil || snapB.Book.NoAsk == nil {
			continue
		}

		yesPrice := *snapA.Book.YesAsk
		noPrice := *snapB.Book.NoAsk
		hedgeCost := yesPrice + noPrice
		estimatedFees := FeeBuffer(hedgeCost, feeBufferBPS)

		topLiquidity := snapA.Book.YesSize
		if snapB.Book.NoSize < topLiquidity {
			topLiquidity = snapB.Book.NoSize
		}

		opportunities = append(opportunities, Opportunity{
			MarketPair: snapA.Market.Venue + ":" + snapA.Market.MarketID +
				" vs " + snapB.Market.Venue + ":" + snapB.Market.MarketID,
			BestYesPriceA:      yesPrice,
			BestNoPriceB:       noPrice,
			HedgeCost:          hedgeCost,
			EstimatedFees:      estimatedFees,
			TopOfBookLiquidity: topLiquidity,
			MarketMismatch:     !(snapA.Market.IsBinary() && snapB.Market.IsBinary()),
			NetEdge:            1.0 - (hedgeCost + estimatedFees),
		})
	}

	return opportunities
}

// FormatOpportunityTable renders one line per opportunity.
func FormatOpportunityTable(opportunities []Opportunity) string {
	lines := make([]string, 0, len(opportunities))
	for _, o := range opportunities {
		lines = append(lines, o.String())
	}

	return strings.Join(lines, "\n")
}
