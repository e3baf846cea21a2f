// Package venue defines the market data capability shared by all sources and
// the price normalization rules applied at the venue boundary.
package venue

import (
	"context"

	"github.com/mselser95/arb-scanner/pkg/types"
)

// Provider is the capability contract every market data source satisfies.
// Errors affecting a single market are absorbed by the provider: the market
// is dropped and counted. An error return means the venue was unreachable.
type Provider interface {
	Name() string
	FetchSnapshots(ctx context.Context) ([]types.MarketSnapshot, error)
}

// Reasons a market is dropped before reaching the evaluator.
const (
	DropMissingPrices = "missing_prices"
	DropMissingTokens = "missing_tokens"
	DropNotBinary     = "not_binary"
	DropFetchError    = "fetch_error"
)

// FetchStats summarizes one batch fetch for the iteration log line.
type FetchStats struct {
	Total    int // markets attempted
	OK       int // snapshots produced
	Errors   int // per-market fetch errors
	NoPrices int // books with neither ask derivable
	OneSided int // snapshots with exactly one ask
	TwoSided int // snapshots with both asks
}
