package arbitrage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/types"
)

// Class is the evaluator's verdict for one hedge direction. Rejected
// directions produce no Result at all, so only these two values appear.
type Class string

const (
	// ClassOpportunity marks a direction clearing both the edge and size gates.
	ClassOpportunity Class = "opportunity"
	// ClassNearMiss marks a direction inside the observability window.
	ClassNearMiss Class = "near_miss"
)

// Order sides as recorded on paper orders.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Combined costs outside this band on a single book are treated as weird
// sums: stale or crossed quotes, not exploitable edge.
const (
	weirdSumLow  = 0.90
	weirdSumHigh = 1.10
)

// Rejection reasons for metrics.
const (
	reasonMissingPrice = "missing_price"
	reasonZeroSize     = "zero_size"
	reasonSizeGate     = "size_gate"
	reasonBelowFloor   = "below_floor"
	reasonAboveCeiling = "above_ceiling"
	reasonWeirdSum     = "weird_sum"
)

// Policy holds the thresholds the evaluator classifies against. Values are
// derived from config once per poll of the control plane, never read from
// globals.
type Policy struct {
	MinEdge          float64
	MinExecSize      float64
	NearMissFloor    float64
	NearMissCeiling  *float64 // nil means unbounded above
	IncludeWeirdSums bool
	FeeBufferBPS     int
}

// PolicyFromConfig derives evaluator thresholds from the loaded config.
// ALERT_ONLY is the single legacy override: when set, the alert threshold
// replaces the mode-derived opportunity edge. No other knob is overridden.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := Policy{
		MinEdge:          cfg.MinEdgeOpportunity,
		MinExecSize:      cfg.MinExecutableSize,
		NearMissFloor:    cfg.NearMissEdgeFloor,
		NearMissCeiling:  cfg.NearMissEdgeCeiling,
		IncludeWeirdSums: cfg.NearMissIncludeWeirdSums,
		FeeBufferBPS:     cfg.FeeBufferBPS,
	}

	if cfg.AlertOnly {
		p.MinEdge = cfg.AlertThreshold
	}

	return p
}

// FeeBuffer returns the fee reserve for a combined cost, in price units.
func FeeBuffer(cost float64, bps int) float64 {
	return cost * float64(bps) / 10000.0
}

// Leg is one side of a two-leg hedge: buy YES on one book, buy NO on the
// other (the same book for internal checks).
type Leg struct {
	Venue    string
	MarketID string
	Side     string
	Price    float64
	Avail    float64 // top-of-book size available at Price
}

// Result is a classified direction together with the signal row to persist.
// The legs carry enough detail for the daemon to build a paper trade plan.
type Result struct {
	Class    Class
	WeirdSum bool
	YesLeg   Leg
	NoLeg    Leg
	Signal   types.Signal
}

// CooldownKey identifies the direction for trade-cooldown tracking.
func (r Result) CooldownKey() string {
	if r.YesLeg.Venue == types.VenueKalshi {
		return "KYES_PNO:" + r.YesLeg.MarketID + ":" + r.NoLeg.MarketID
	}

	return "PYES_KNO:" + r.YesLeg.MarketID + ":" + r.NoLeg.MarketID
}

// String returns a human-readable one-liner for logs.
func (r Result) String() string {
	return fmt.Sprintf(
		"%s %s %s:%s + %s:%s sum=%.4f buf_edge=%.4f exec=%.2f",
		r.Class,
		r.Signal.Kind,
		r.YesLeg.Venue,
		r.YesLeg.MarketID,
		r.NoLeg.Venue,
		r.NoLeg.MarketID,
		r.Signal.SumPrice,
		r.Signal.BufEdge,
		r.Signal.ExecSize,
	)
}

// EvaluatePair evaluates both hedge directions across two snapshots of the
// same event: YES@a + NO@b and YES@b + NO@a. Pure function; the returned
// results carry only opportunity and near-miss classes, rejected directions
// are counted and dropped.
func EvaluatePair(ts int64, a, b types.MarketSnapshot, pol Policy) []Result {
	results := make([]Result, 0, 2)

	if res, ok := evaluate(ts, types.SignalCrossVenue, a, b, pol, false); ok {
		results = append(results, res)
	}

	if res, ok := evaluate(ts, types.SignalCrossVenue, b, a, pol, false); ok {
		results = append(results, res)
	}

	return results
}

// EvaluateInternal checks a single market against itself: buying both sides
// on the same book. Combined costs far from 1.0 are flagged weird and can
// never classify as opportunities no matter how large the edge looks.
func EvaluateInternal(ts int64, s types.MarketSnapshot, pol Policy) (Result, bool) {
	return evaluate(ts, types.SignalKalshiInternal, s, s, pol, true)
}

// evaluate runs the arithmetic and classification for one direction: buy YES
// on the yes snapshot, buy NO on the no snapshot.
func evaluate(ts int64, kind string, yes, no types.MarketSnapshot, pol Policy, intra bool) (Result, bool) {
	EvaluationsTotal.WithLabelValues(kind).Inc()

	if yes.Book.YesAsk == nil || no.Book.NoAsk == nil {
		RejectsTotal.WithLabelValues(reasonMissingPrice).Inc()
		return Result{}, false
	}

	exec := yes.Book.YesSize
	if no.Book.NoSize < exec {
		exec = no.Book.NoSize
	}

	if exec <= 0 {
		RejectsTotal.WithLabelValues(reasonZeroSize).Inc()
		return Result{}, false
	}

	cost := *yes.Book.YesAsk + *no.Book.NoAsk
	rawEdge := 1.0 - cost
	bufEdge := rawEdge - FeeBuffer(cost, pol.FeeBufferBPS)

	BufEdgeObserved.Observe(bufEdge)

	weird := intra && (cost < weirdSumLow || cost > weirdSumHigh)

	var class Class

	switch {
	case weird:
		if !pol.IncludeWeirdSums {
			RejectsTotal.WithLabelValues(reasonWeirdSum).Inc()
			return Result{}, false
		}

		if exec < pol.MinExecSize {
			RejectsTotal.WithLabelValues(reasonSizeGate).Inc()
			return Result{}, false
		}

		class = ClassNearMiss

	case bufEdge >= pol.MinEdge && exec >= pol.MinExecSize:
		class = ClassOpportunity

	case bufEdge >= pol.MinEdge:
		RejectsTotal.WithLabelValues(reasonSizeGate).Inc()
		return Result{}, false

	case bufEdge < pol.NearMissFloor:
		RejectsTotal.WithLabelValues(reasonBelowFloor).Inc()
		return Result{}, false

	case pol.NearMissCeiling != nil && bufEdge > *pol.NearMissCeiling:
		RejectsTotal.WithLabelValues(reasonAboveCeiling).Inc()
		return Result{}, false

	case exec < pol.MinExecSize:
		RejectsTotal.WithLabelValues(reasonSizeGate).Inc()
		return Result{}, false

	default:
		class = ClassNearMiss
	}

	sig := types.Signal{
		TS:        ts,
		Kind:      kind,
		AVenue:    yes.Market.Venue,
		AMarketID: yes.Market.MarketID,
		SumPrice:  cost,
		RawEdge:   rawEdge,
		BufEdge:   bufEdge,
		ExecSize:  exec,
	}

	if kind == types.SignalCrossVenue {
		sig.BVenue = no.Market.Venue
		sig.BMarketID = no.Market.MarketID
		sig.Details = "BUY yes@" + venueShort(yes.Market.Venue) + " + no@" + venueShort(no.Market.Venue)

		if class == ClassNearMiss {
			sig.Details = "NEAR_MISS " + sig.Details
		}
	} else {
		sig.Details = "question=" + yes.Market.Question

		switch {
		case weird:
			sig.Details = "WEIRD_SUM " + sig.Details
		case class == ClassNearMiss:
			sig.Details = "NEAR_MISS " + sig.Details
		}
	}

	SignalsTotal.WithLabelValues(kind, string(class)).Inc()

	return Result{
		Class:    class,
		WeirdSum: weird,
		YesLeg: Leg{
			Venue:    yes.Market.Venue,
			MarketID: yes.Market.MarketID,
			Side:     SideYes,
			Price:    *yes.Book.YesAsk,
			Avail:    yes.Book.YesSize,
		},
		NoLeg: Leg{
			Venue:    no.Market.Venue,
			MarketID: no.Market.MarketID,
			Side:     SideNo,
			Price:    *no.Book.NoAsk,
			Avail:    no.Book.NoSize,
		},
		Signal: sig,
	}, true
}

// SortResults orders results best-first: higher buffered edge, then larger
// executable size, then lexicographic a-leg market id.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		si, sj := results[i].Signal, results[j].Signal

		if si.BufEdge != sj.BufEdge {
			return si.BufEdge > sj.BufEdge
		}

		if si.ExecSize != sj.ExecSize {
			return si.ExecSize > sj.ExecSize
		}

		return si.AMarketID < sj.AMarketID
	})
}

func venueShort(venue string) string {
	switch venue {
	case types.VenueKalshi:
		return "kalshi"
	case types.VenuePolymarket:
		return "poly"
	default:
		return strings.ToLower(venue)
	}
}
