// Package paper simulates execution of arbitrage trades against a virtual
// bankroll. Fills are instant at the quoted ask, settlement assumes the
// guaranteed payoff of holding both sides of a binary pair, and every ledger
// move goes through one storage transaction.
package paper

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mselser95/arb-scanner/internal/storage"
	"go.uber.org/zap"
)

// Paper-state keys.
const (
	keyFreeBalance   = "free_balance"
	keyLockedBalance = "locked_balance"
	keyRealizedPnL   = "realized_pnl"
	keyBankrollSet   = "bankroll_set"
)

// Leg is one side of a planned trade: buy Side at Price, with SizeAvail
// contracts resting at that price.
type Leg struct {
	Venue     string
	MarketID  string
	Side      string // "YES" | "NO"
	Price     float64
	SizeAvail float64
}

// Plan is an executable trade candidate produced by the scan loop.
type Plan struct {
	Kind     string
	Size     float64
	SumPrice float64
	BufEdge  float64
	Legs     [2]Leg
	Details  string
}

// Config holds the executor's tunables.
type Config struct {
	SettleAfterSecs int64
	MinFreeBalance  float64
}

// Executor is the paper-trading engine.
type Executor struct {
	store  storage.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewExecutor creates a paper executor backed by the given store.
func NewExecutor(store storage.Store, cfg Config, logger *zap.Logger) *Executor {
	return &Executor{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// InitBankroll seeds the ledger on first use. Once the bankroll has been
// set, later calls are no-ops; the control plane's bankroll knob only applies
// to fresh ledgers.
func (e *Executor) InitBankroll(ctx context.Context, bankroll float64) error {
	var set bool
	found, err := e.store.PaperGet(ctx, keyBankrollSet, &set)
	if err != nil {
		return err
	}
	if found && set {
		return nil
	}

	for key, value := range map[string]interface{}{
		keyFreeBalance:   bankroll,
		keyLockedBalance: 0.0,
		keyRealizedPnL:   0.0,
		keyBankrollSet:   true,
	} {
		if err := e.store.PaperSet(ctx, key, value); err != nil {
			return err
		}
	}

	e.logger.Info("paper-bankroll-initialized", zap.Float64("bankroll", bankroll))
	return nil
}

// Balances reads the ledger triple. Absent keys read as zero.
func (e *Executor) Balances(ctx context.Context) (storage.PaperBalances, error) {
	var bal storage.PaperBalances

	for _, slot := range []struct {
		key string
		dst *float64
	}{
		{keyFreeBalance, &bal.Free},
		{keyLockedBalance, &bal.Locked},
		{keyRealizedPnL, &bal.RealizedPnL},
	} {
		if _, err := e.store.PaperGet(ctx, slot.key, slot.dst); err != nil {
			return storage.PaperBalances{}, err
		}
	}

	return bal, nil
}

// TryExecute attempts to fill the plan. On success the orders, the open
// trade, and the free-to-locked balance move commit as one transaction. On
// failure nothing is written and the reason carries the offending quantities.
func (e *Executor) TryExecute(ctx context.Context, plan Plan) (bool, string, error) {
	for _, leg := range plan.Legs {
		if leg.SizeAvail < plan.Size {
			reason := fmt.Sprintf("insufficient_liquidity venue=%s market=%s avail=%.2f need=%.2f",
				leg.Venue, leg.MarketID, leg.SizeAvail, plan.Size)
			ExecutionsTotal.WithLabelValues("insufficient_liquidity").Inc()
			return false, reason, nil
		}
	}

	bal, err := e.Balances(ctx)
	if err != nil {
		return false, "", err
	}

	cost := plan.Size * plan.SumPrice
	if bal.Free-cost < e.cfg.MinFreeBalance {
		reason := fmt.Sprintf("insufficient_balance free=%.2f cost=%.2f floor=%.2f",
			bal.Free, cost, e.cfg.MinFreeBalance)
		ExecutionsTotal.WithLabelValues("insufficient_balance").Inc()
		return false, reason, nil
	}

	now := e.now().Unix()
	tradeID := uuid.NewString()
	expectedProfit := (1 - plan.SumPrice) * plan.Size

	legsJSON, err := json.Marshal(plan.Legs)
	if err != nil {
		return false, "", fmt.Errorf("encode legs: %w", err)
	}

	trade := &storage.PaperTrade{
		TradeID:        tradeID,
		TSOpen:         now,
		Kind:           plan.Kind,
		Size:           plan.Size,
		SumPrice:       plan.SumPrice,
		BufEdge:        plan.BufEdge,
		ExpectedProfit: expectedProfit,
		Legs:           string(legsJSON),
		Status:         "open",
		Details:        plan.Details,
	}

	orders := make([]*storage.PaperOrder, 0, len(plan.Legs))
	for _, leg := range plan.Legs {
		orders = append(orders, &storage.PaperOrder{
			OrderID:    uuid.NewString(),
			TradeID:    tradeID,
			TS:         now,
			Venue:      leg.Venue,
			MarketID:   leg.MarketID,
			Side:       leg.Side,
			Action:     "BUY",
			Price:      leg.Price,
			Size:       plan.Size,
			Status:     "filled",
			FilledSize: plan.Size,
		})
	}

	bal.Free -= cost
	bal.Locked += cost

	if err := e.store.PaperOpenTrade(ctx, trade, orders, bal); err != nil {
		return false, "", err
	}

	ExecutionsTotal.WithLabelValues("executed").Inc()
	e.logger.Info("paper-trade-executed",
		zap.String("trade_id", tradeID),
		zap.String("kind", plan.Kind),
		zap.Float64("size", plan.Size),
		zap.Float64("cost", cost),
		zap.Float64("expected_profit", expectedProfit))

	reason := fmt.Sprintf("executed trade_id=%s cost=%.2f expected_profit=%.4f",
		tradeID, cost, expectedProfit)
	return true, reason, nil
}

// MaybeSettle closes every open trade whose holding period has elapsed,
// oldest first. Each settlement unlocks the cost, credits cost plus expected
// profit to free, and books the profit as realized P&L, one transaction per
// trade. Returns how many trades were closed.
func (e *Executor) MaybeSettle(ctx context.Context) (int, error) {
	trades, err := e.store.PaperListOpenTrades(ctx, 200)
	if err != nil {
		return 0, err
	}

	now := e.now().Unix()
	closed := 0

	for _, tr := range trades {
		if tr.TSOpen+e.cfg.SettleAfterSecs > now {
			// Oldest-first ordering: nothing later is due either.
			break
		}

		bal, err := e.Balances(ctx)
		if err != nil {
			return closed, err
		}

		cost := tr.Size * tr.SumPrice
		bal.Locked -= cost
		if bal.Locked < 0 {
			bal.Locked = 0
		}
		bal.Free += cost + tr.ExpectedProfit
		bal.RealizedPnL += tr.ExpectedProfit

		ok, err := e.store.PaperSettleTrade(ctx, tr.TradeID, now, bal)
		if err != nil {
			return closed, err
		}
		if !ok {
			continue
		}

		closed++
		SettlementsTotal.Inc()
		e.logger.Info("paper-trade-settled",
			zap.String("trade_id", tr.TradeID),
			zap.Float64("profit", tr.ExpectedProfit))
	}

	return closed, nil
}
