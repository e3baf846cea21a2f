package storage

import (
	"context"

	"github.com/mselser95/arb-scanner/pkg/types"
)

// PaperOrder is a simulated order, filled instantly at top-of-book.
type PaperOrder struct {
	OrderID    string
	TradeID    string
	TS         int64
	Venue      string
	MarketID   string
	Side       string // "YES" | "NO"
	Action     string // "BUY"
	Price      float64
	Size       float64
	Status     string
	FilledSize float64
	Details    string
}

// PaperTrade is a simulated two-leg trade.
type PaperTrade struct {
	TradeID        string
	TSOpen         int64
	Kind           string
	Size           float64
	SumPrice       float64
	BufEdge        float64
	ExpectedProfit float64
	Legs           string // JSON document describing both legs
	Status         string // "open" | "closed"
	Details        string
}

// OpenTrade is the subset of paper trade columns needed for settlement.
type OpenTrade struct {
	TradeID        string
	TSOpen         int64
	Size           float64
	SumPrice       float64
	ExpectedProfit float64
}

// PaperBalances is the ledger triple kept in paper_state. The invariant
// free + locked = initial bankroll + realized pnl holds at every commit.
type PaperBalances struct {
	Free        float64
	Locked      float64
	RealizedPnL float64
}

// Store is the interface for persisting scan runs, snapshots, signals and
// paper-trading state.
type Store interface {
	// StartRun records the start of a daemon run.
	StartRun(ctx context.Context, runID, mode, notes string) error

	// InsertSnapshots stores top-of-book snapshots, ignoring duplicates.
	// Returns the number of rows actually inserted.
	InsertSnapshots(ctx context.Context, snaps []types.MarketSnapshot) (int64, error)

	// InsertSignal stores an opportunity or near-miss signal.
	InsertSignal(ctx context.Context, sig *types.Signal) error

	// PruneSnapshots deletes snapshots older than keepDays days.
	// Returns the number of rows deleted.
	PruneSnapshots(ctx context.Context, keepDays int) (int64, error)

	// WALCheckpoint truncates the write-ahead log.
	WALCheckpoint(ctx context.Context) error

	// PaperGet reads a paper-state value into out. Returns false if absent.
	PaperGet(ctx context.Context, key string, out interface{}) (bool, error)

	// PaperSet writes a paper-state value.
	PaperSet(ctx context.Context, key string, value interface{}) error

	// PaperOpenTrade records a trade, its order fills, and the balance move
	// from free to locked as a single transaction.
	PaperOpenTrade(ctx context.Context, tr *PaperTrade, orders []*PaperOrder, bal PaperBalances) error

	// PaperListOpenTrades returns open trades, oldest first.
	PaperListOpenTrades(ctx context.Context, limit int) ([]OpenTrade, error)

	// PaperSettleTrade closes an open trade and writes the settled balances
	// in a single transaction. Returns false if the trade was not open,
	// in which case the balances are left untouched.
	PaperSettleTrade(ctx context.Context, tradeID string, tsClose int64, bal PaperBalances) (bool, error)

	// Close closes the storage connection.
	Close() error
}
