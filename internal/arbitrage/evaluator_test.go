package arbitrage

import (
	"math"
	"testing"

	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/types"
)

func ask(v float64) *float64 {
	return &v
}

func pairSnap(venue, marketID string, yesAsk, noAsk *float64, yesSize, noSize float64) types.MarketSnapshot {
	return types.MarketSnapshot{
		Market: types.Market{
			Venue:    venue,
			MarketID: marketID,
			Question: "Will it settle yes?",
			Outcomes: []string{"Yes", "No"},
		},
		Book: types.OrderBookTop{
			YesAsk:  yesAsk,
			NoAsk:   noAsk,
			YesSize: yesSize,
			NoSize:  noSize,
		},
		TS: 1700000000,
	}
}

func TestEvaluatePair(t *testing.T) {
	ceiling := 0.02

	tests := []struct {
		name        string
		a           types.MarketSnapshot
		b           types.MarketSnapshot
		floor       float64
		wantCount   int
		wantClass   Class
		wantBufEdge float64
		wantExec    float64
		wantDetails string
	}{
		{
			name:        "clean-arbitrage-single-direction",
			a:           pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.48), ask(0.55), 50, 50),
			b:           pairSnap(types.VenuePolymarket, "btc-2025", ask(0.49), ask(0.49), 50, 50),
			floor:       -0.005,
			wantCount:   1,
			wantClass:   ClassOpportunity,
			wantBufEdge: 0.027575, // 1 - 0.97 - 0.97*0.0025
			wantExec:    50,
			wantDetails: "BUY yes@kalshi + no@poly",
		},
		{
			name:      "efficient-market-nothing-recorded",
			a:         pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.50), ask(0.52), 50, 50),
			b:         pairSnap(types.VenuePolymarket, "btc-2025", ask(0.50), ask(0.52), 50, 50),
			floor:     -0.005, // both directions cost 1.02, buf_edge -0.02255 falls below the floor
			wantCount: 0,
		},
		{
			name:        "near-miss-inside-wide-floor",
			a:           pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.50), ask(0.52), 50, 50),
			b:           pairSnap(types.VenuePolymarket, "btc-2025", ask(0.50), ask(0.52), 50, 50),
			floor:       -0.05,
			wantCount:   2,
			wantClass:   ClassNearMiss,
			wantBufEdge: -0.02255, // 1 - 1.02 - 1.02*0.0025
			wantExec:    50,
			wantDetails: "NEAR_MISS BUY yes@kalshi + no@poly",
		},
		{
			name:      "size-gate-blocks-thin-leg",
			a:         pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.48), ask(0.55), 50, 50),
			b:         pairSnap(types.VenuePolymarket, "btc-2025", ask(0.49), ask(0.49), 50, 0.5),
			floor:     -0.005,
			wantCount: 0, // profitable direction has exec_size 0.5 < 1
		},
		{
			name:        "opportunity-in-reverse-direction",
			a:           pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.49), ask(0.49), 50, 50),
			b:           pairSnap(types.VenuePolymarket, "btc-2025", ask(0.48), ask(0.55), 50, 50),
			floor:       -0.005,
			wantCount:   1,
			wantClass:   ClassOpportunity,
			wantBufEdge: 0.027575,
			wantExec:    50,
			wantDetails: "BUY yes@poly + no@kalshi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := Policy{
				MinEdge:         0.02,
				MinExecSize:     1,
				NearMissFloor:   tt.floor,
				NearMissCeiling: &ceiling,
				FeeBufferBPS:    25,
			}

			results := EvaluatePair(1700000000, tt.a, tt.b, pol)

			if len(results) != tt.wantCount {
				t.Fatalf("expected %d results, got=%d", tt.wantCount, len(results))
			}

			if tt.wantCount == 0 {
				return
			}

			for _, res := range results {
				if res.Class != tt.wantClass {
					t.Errorf("expected class=%s, got=%s", tt.wantClass, res.Class)
				}
			}

			first := results[0]

			if math.Abs(first.Signal.BufEdge-tt.wantBufEdge) > 1e-9 {
				t.Errorf("expected buf_edge=%.6f, got=%.6f", tt.wantBufEdge, first.Signal.BufEdge)
			}

			if first.Signal.ExecSize != tt.wantExec {
				t.Errorf("expected exec_size=%.2f, got=%.2f", tt.wantExec, first.Signal.ExecSize)
			}

			if first.Signal.Details != tt.wantDetails {
				t.Errorf("expected details=%q, got=%q", tt.wantDetails, first.Signal.Details)
			}

			if first.Signal.Kind != types.SignalCrossVenue {
				t.Errorf("expected kind=%s, got=%s", types.SignalCrossVenue, first.Signal.Kind)
			}
		})
	}
}

func TestEvaluatePairMissingPrices(t *testing.T) {
	ceiling := 0.02
	pol := Policy{
		MinEdge:         0.02,
		MinExecSize:     1,
		NearMissFloor:   -0.005,
		NearMissCeiling: &ceiling,
		FeeBufferBPS:    25,
	}

	// NO ask missing on b kills YES@a + NO@b; the reverse direction still
	// prices 0.49 + 0.48 = 0.97 and qualifies.
	a := pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.52), ask(0.48), 50, 50)
	b := pairSnap(types.VenuePolymarket, "btc-2025", ask(0.49), nil, 50, 50)

	results := EvaluatePair(1700000000, a, b, pol)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got=%d", len(results))
	}

	if results[0].Signal.AVenue != types.VenuePolymarket {
		t.Errorf("expected a_venue=%s, got=%s", types.VenuePolymarket, results[0].Signal.AVenue)
	}

	// Both asks missing on one side leaves nothing to evaluate.
	c := pairSnap(types.VenuePolymarket, "btc-2025", nil, nil, 50, 50)
	if results := EvaluatePair(1700000000, a, c, pol); len(results) != 0 {
		t.Errorf("expected 0 results, got=%d", len(results))
	}

	// Zero size on the YES leg skips the direction even with clean prices.
	d := pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.48), nil, 0, 0)
	e := pairSnap(types.VenuePolymarket, "btc-2025", nil, ask(0.49), 50, 50)
	if results := EvaluatePair(1700000000, d, e, pol); len(results) != 0 {
		t.Errorf("expected 0 results for zero-size leg, got=%d", len(results))
	}
}

func TestEvaluatePairSymmetry(t *testing.T) {
	ceiling := 0.02
	pol := Policy{
		MinEdge:         0.02,
		MinExecSize:     1,
		NearMissFloor:   -0.05,
		NearMissCeiling: &ceiling,
		FeeBufferBPS:    25,
	}

	a := pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(0.50), ask(0.52), 40, 60)
	b := pairSnap(types.VenuePolymarket, "btc-2025", ask(0.50), ask(0.52), 30, 70)

	fwd := EvaluatePair(1700000000, a, b, pol)
	rev := EvaluatePair(1700000000, b, a, pol)

	SortResults(fwd)
	SortResults(rev)

	if len(fwd) != len(rev) {
		t.Fatalf("expected symmetric result counts, got fwd=%d rev=%d", len(fwd), len(rev))
	}

	for i := range fwd {
		fs, rs := fwd[i].Signal, rev[i].Signal

		if fs.AVenue != rs.AVenue || fs.AMarketID != rs.AMarketID {
			t.Errorf("result %d: expected a-leg %s:%s, got=%s:%s", i, fs.AVenue, fs.AMarketID, rs.AVenue, rs.AMarketID)
		}

		if math.Abs(fs.BufEdge-rs.BufEdge) > 1e-12 {
			t.Errorf("result %d: expected buf_edge=%.6f, got=%.6f", i, fs.BufEdge, rs.BufEdge)
		}

		if fs.ExecSize != rs.ExecSize {
			t.Errorf("result %d: expected exec_size=%.2f, got=%.2f", i, fs.ExecSize, rs.ExecSize)
		}
	}
}

func TestEvaluateInternal(t *testing.T) {
	tests := []struct {
		name        string
		yesAsk      float64
		noAsk       float64
		size        float64
		include     bool
		wantOK      bool
		wantClass   Class
		wantWeird   bool
		wantBufEdge float64
		wantDetails string
	}{
		{
			name:        "near-miss-normal-sum",
			yesAsk:      0.52,
			noAsk:       0.50,
			size:        10,
			include:     true,
			wantOK:      true,
			wantClass:   ClassNearMiss,
			wantBufEdge: -0.02255, // 1 - 1.02 - 1.02*0.0025
			wantDetails: "NEAR_MISS question=Will it settle yes?",
		},
		{
			name:        "internal-opportunity",
			yesAsk:      0.47,
			noAsk:       0.50,
			size:        10,
			include:     true,
			wantOK:      true,
			wantClass:   ClassOpportunity,
			wantBufEdge: 0.027575,
			wantDetails: "question=Will it settle yes?",
		},
		{
			name:    "weird-sum-suppressed",
			yesAsk:  0.05,
			noAsk:   0.10,
			size:    100,
			include: false,
			wantOK:  false,
		},
		{
			name:        "weird-sum-reported",
			yesAsk:      0.05,
			noAsk:       0.10,
			size:        100,
			include:     true,
			wantOK:      true,
			wantClass:   ClassNearMiss,
			wantWeird:   true,
			wantBufEdge: 0.849625, // huge edge, still never an opportunity
			wantDetails: "WEIRD_SUM question=Will it settle yes?",
		},
		{
			name:    "weird-sum-size-gated",
			yesAsk:  0.05,
			noAsk:   0.10,
			size:    0.5,
			include: true,
			wantOK:  false,
		},
		{
			name:    "below-floor-rejected",
			yesAsk:  0.60,
			noAsk:   0.48,
			size:    10,
			include: true,
			wantOK:  false, // cost 1.08 is inside the weird band but buf_edge -0.0827 is under the floor
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ceiling := 0.02
			pol := Policy{
				MinEdge:          0.02,
				MinExecSize:      1,
				NearMissFloor:    -0.05,
				NearMissCeiling:  &ceiling,
				IncludeWeirdSums: tt.include,
				FeeBufferBPS:     25,
			}

			s := pairSnap(types.VenueKalshi, "KXTEST", ask(tt.yesAsk), ask(tt.noAsk), tt.size, tt.size)

			res, ok := EvaluateInternal(1700000000, s, pol)

			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got=%v", tt.wantOK, ok)
			}

			if !tt.wantOK {
				return
			}

			if res.Class != tt.wantClass {
				t.Errorf("expected class=%s, got=%s", tt.wantClass, res.Class)
			}

			if res.WeirdSum != tt.wantWeird {
				t.Errorf("expected weird=%v, got=%v", tt.wantWeird, res.WeirdSum)
			}

			if math.Abs(res.Signal.BufEdge-tt.wantBufEdge) > 1e-9 {
				t.Errorf("expected buf_edge=%.6f, got=%.6f", tt.wantBufEdge, res.Signal.BufEdge)
			}

			if res.Signal.Details != tt.wantDetails {
				t.Errorf("expected details=%q, got=%q", tt.wantDetails, res.Signal.Details)
			}

			if res.Signal.Kind != types.SignalKalshiInternal {
				t.Errorf("expected kind=%s, got=%s", types.SignalKalshiInternal, res.Signal.Kind)
			}

			if res.Signal.BVenue != "" || res.Signal.BMarketID != "" {
				t.Errorf("expected empty b-leg refs, got=%s:%s", res.Signal.BVenue, res.Signal.BMarketID)
			}
		})
	}
}

func TestFeeBuffer(t *testing.T) {
	if got := FeeBuffer(0.97, 25); math.Abs(got-0.002425) > 1e-12 {
		t.Errorf("expected fee_buffer=0.002425, got=%.6f", got)
	}

	if got := FeeBuffer(1.0, 0); got != 0 {
		t.Errorf("expected zero fee buffer, got=%.6f", got)
	}

	// Raising the fee rate must strictly shrink the buffered edge.
	cost := 0.97
	prev := math.Inf(1)

	for bps := 0; bps <= 100; bps += 10 {
		buf := 1.0 - cost - FeeBuffer(cost, bps)
		if buf >= prev {
			t.Fatalf("buf_edge not strictly decreasing at bps=%d: %.6f >= %.6f", bps, buf, prev)
		}
		prev = buf
	}
}

// Safe mode only ever tightens: anything it classifies is also classified
// under lab defaults, and safe opportunities stay opportunities.
func TestModeContract(t *testing.T) {
	labCeiling := 0.02
	lab := Policy{
		MinEdge:          0.0,
		MinExecSize:      1,
		NearMissFloor:    -0.01,
		NearMissCeiling:  &labCeiling,
		IncludeWeirdSums: true,
		FeeBufferBPS:     25,
	}

	safeCeiling := 0.02
	safe := Policy{
		MinEdge:          0.015,
		MinExecSize:      10,
		NearMissFloor:    -0.005,
		NearMissCeiling:  &safeCeiling,
		IncludeWeirdSums: false,
		FeeBufferBPS:     25,
	}

	prices := []float64{0.40, 0.45, 0.47, 0.48, 0.50, 0.52, 0.55}
	sizes := []float64{5, 50}

	for _, yes := range prices {
		for _, no := range prices {
			for _, size := range sizes {
				// One-sided books so exactly one direction is evaluated.
				a := pairSnap(types.VenueKalshi, "KXBTC-25DEC31", ask(yes), nil, size, 0)
				b := pairSnap(types.VenuePolymarket, "btc-2025", nil, ask(no), 0, size)

				safeRes := EvaluatePair(1700000000, a, b, safe)
				labRes := EvaluatePair(1700000000, a, b, lab)

				if len(safeRes) == 0 {
					continue
				}

				if len(labRes) == 0 {
					t.Fatalf("yes=%.2f no=%.2f size=%.0f: safe classified %s but lab recorded nothing",
						yes, no, size, safeRes[0].Class)
				}

				if safeRes[0].Class == ClassOpportunity && labRes[0].Class != ClassOpportunity {
					t.Errorf("yes=%.2f no=%.2f size=%.0f: safe opportunity demoted to %s under lab",
						yes, no, size, labRes[0].Class)
				}
			}
		}
	}
}

func TestPolicyFromConfig(t *testing.T) {
	ceiling := 0.02
	cfg := &config.Config{
		AlertOnly:                false,
		AlertThreshold:           0.05,
		MinEdgeOpportunity:       0.015,
		MinExecutableSize:        10,
		NearMissEdgeFloor:        -0.005,
		NearMissEdgeCeiling:      &ceiling,
		NearMissIncludeWeirdSums: false,
		FeeBufferBPS:             25,
	}

	pol := PolicyFromConfig(cfg)

	if pol.MinEdge != 0.015 {
		t.Errorf("expected min_edge=0.015, got=%.4f", pol.MinEdge)
	}

	if pol.MinExecSize != 10 || pol.NearMissFloor != -0.005 || pol.FeeBufferBPS != 25 {
		t.Errorf("unexpected policy: %+v", pol)
	}

	if pol.NearMissCeiling == nil || *pol.NearMissCeiling != 0.02 {
		t.Errorf("expected ceiling=0.02, got=%v", pol.NearMissCeiling)
	}

	// The legacy alert knob replaces only the opportunity edge.
	cfg.AlertOnly = true
	pol = PolicyFromConfig(cfg)

	if pol.MinEdge != 0.05 {
		t.Errorf("expected min_edge=0.05 with alert_only, got=%.4f", pol.MinEdge)
	}

	if pol.MinExecSize != 10 {
		t.Errorf("expected min_exec_size untouched, got=%.2f", pol.MinExecSize)
	}
}

func TestSortResults(t *testing.T) {
	results := []Result{
		{Signal: types.Signal{AMarketID: "m-b", BufEdge: 0.01, ExecSize: 50}},
		{Signal: types.Signal{AMarketID: "m-c", BufEdge: 0.02, ExecSize: 10}},
		{Signal: types.Signal{AMarketID: "m-a", BufEdge: 0.01, ExecSize: 50}},
		{Signal: types.Signal{AMarketID: "m-z", BufEdge: 0.01, ExecSize: 99}},
	}

	SortResults(results)

	want := []string{"m-c", "m-z", "m-a", "m-b"}
	for i, id := range want {
		if results[i].Signal.AMarketID != id {
			t.Errorf("position %d: expected %s, got=%s", i, id, results[i].Signal.AMarketID)
		}
	}
}

func TestCooldownKey(t *testing.T) {
	kalshiYes := Result{
		YesLeg: Leg{Venue: types.VenueKalshi, MarketID: "KXBTC-25DEC31", Side: SideYes},
		NoLeg:  Leg{Venue: types.VenuePolymarket, MarketID: "btc-2025", Side: SideNo},
	}

	if got := kalshiYes.CooldownKey(); got != "KYES_PNO:KXBTC-25DEC31:btc-2025" {
		t.Errorf("unexpected cooldown key: %s", got)
	}

	polyYes := Result{
		YesLeg: Leg{Venue: types.VenuePolymarket, MarketID: "btc-2025", Side: SideYes},
		NoLeg:  Leg{Venue: types.VenueKalshi, MarketID: "KXBTC-25DEC31", Side: SideNo},
	}

	if got := polyYes.CooldownKey(); got != "PYES_KNO:btc-2025:KXBTC-25DEC31" {
		t.Errorf("unexpected cooldown key: %s", got)
	}
}
