package venue

import (
	"context"
	"time"

	"github.com/mselser95/arb-scanner/pkg/types"
)

// StubProvider serves two fixed markets for offline runs and self-tests.
// Point both legs of a scan at stubs with different venue labels and the
// question-pairing path gets exercised without touching a network.
type StubProvider struct {
	venue string
}

// NewStubProvider creates a stub source labeled with the given venue.
func NewStubProvider(venue string) *StubProvider {
	return &StubProvider{venue: venue}
}

// Name returns the venue label.
func (p *StubProvider) Name() string {
	return p.venue
}

// FetchSnapshots returns the fixed offline markets.
func (p *StubProvider) FetchSnapshots(_ context.Context) ([]types.MarketSnapshot, error) {
	ts := time.Now().Unix()

	btcYes, btcNo := 0.52, 0.49
	nflYes, nflNo := 0.35, 0.68

	snaps := []types.MarketSnapshot{
		{
			Market: types.Market{
				Venue:    p.venue,
				MarketID: p.venue + "-btc-2025",
				Question: "Will Bitcoin close above $100k on 2025-12-31?",
				Outcomes: []string{"Yes", "No"},
			},
			Book: types.OrderBookTop{
				YesAsk:  &btcYes,
				NoAsk:   &btcNo,
				YesSize: 120,
				NoSize:  80,
			},
			TS: ts,
		},
		{
			Market: types.Market{
				Venue:    p.venue,
				MarketID: p.venue + "-nfl-2025",
				Question: "Will the Chiefs win the 2025 Super Bowl?",
				Outcomes: []string{"Yes", "No"},
			},
			Book: types.OrderBookTop{
				YesAsk:  &nflYes,
				NoAsk:   &nflNo,
				YesSize: 200,
				NoSize:  140,
			},
			TS: ts,
		},
	}

	SnapshotsFetchedTotal.WithLabelValues(p.venue).Add(float64(len(snaps)))

	return snaps, nil
}
