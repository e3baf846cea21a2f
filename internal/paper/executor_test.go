package paper

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/arb-scanner/internal/storage"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// memStore is an in-memory Store for executor tests.
type memStore struct {
	state  map[string]string
	trades map[string]*storage.PaperTrade
	orders []*storage.PaperOrder
}

func newMemStore() *memStore {
	return &memStore{
		state:  make(map[string]string),
		trades: make(map[string]*storage.PaperTrade),
	}
}

func (s *memStore) StartRun(context.Context, string, string, string) error { return nil }
func (s *memStore) InsertSnapshots(context.Context, []types.MarketSnapshot) (int64, error) {
	return 0, nil
}
func (s *memStore) InsertSignal(context.Context, *types.Signal) error  { return nil }
func (s *memStore) PruneSnapshots(context.Context, int) (int64, error) { return 0, nil }
func (s *memStore) WALCheckpoint(context.Context) error                { return nil }
func (s *memStore) Close() error                                       { return nil }

func (s *memStore) PaperGet(_ context.Context, key string, out interface{}) (bool, error) {
	raw, ok := s.state[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), out)
}

func (s *memStore) PaperSet(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.state[key] = string(raw)
	return nil
}

func (s *memStore) setBalances(bal storage.PaperBalances) {
	for key, v := range map[string]float64{
		"free_balance":   bal.Free,
		"locked_balance": bal.Locked,
		"realized_pnl":   bal.RealizedPnL,
	} {
		raw, _ := json.Marshal(v)
		s.state[key] = string(raw)
	}
}

func (s *memStore) PaperOpenTrade(_ context.Context, tr *storage.PaperTrade, orders []*storage.PaperOrder, bal storage.PaperBalances) error {
	s.trades[tr.TradeID] = tr
	s.orders = append(s.orders, orders...)
	s.setBalances(bal)
	return nil
}

func (s *memStore) PaperListOpenTrades(_ context.Context, limit int) ([]storage.OpenTrade, error) {
	var out []storage.OpenTrade
	for _, tr := range s.trades {
		if tr.Status != "open" {
			continue
		}
		out = append(out, storage.OpenTrade{
			TradeID:        tr.TradeID,
			TSOpen:         tr.TSOpen,
			Size:           tr.Size,
			SumPrice:       tr.SumPrice,
			ExpectedProfit: tr.ExpectedProfit,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TSOpen < out[j].TSOpen })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) PaperSettleTrade(_ context.Context, tradeID string, tsClose int64, bal storage.PaperBalances) (bool, error) {
	tr, ok := s.trades[tradeID]
	if !ok || tr.Status != "open" {
		return false, nil
	}
	tr.Status = "closed"
	s.setBalances(bal)
	return true, nil
}

func testPlan() Plan {
	return Plan{
		Kind:     "cross_venue",
		Size:     10,
		SumPrice: 0.97,
		BufEdge:  0.0276,
		Legs: [2]Leg{
			{Venue: types.VenueKalshi, MarketID: "KXBTC-A", Side: "YES", Price: 0.48, SizeAvail: 50},
			{Venue: types.VenuePolymarket, MarketID: "btc-100k-2025", Side: "NO", Price: 0.49, SizeAvail: 40},
		},
	}
}

func newTestExecutor(store storage.Store, nowUnix int64) *Executor {
	e := NewExecutor(store, Config{SettleAfterSecs: 60, MinFreeBalance: 100}, zap.NewNop())
	e.now = func() time.Time { return time.Unix(nowUnix, 0) }
	return e
}

func TestExecutor_InitBankroll_Once(t *testing.T) {
	store := newMemStore()
	e := newTestExecutor(store, 1000)
	ctx := context.Background()

	if err := e.InitBankroll(ctx, 1000); err != nil {
		t.Fatalf("InitBankroll: %v", err)
	}

	bal, err := e.Balances(ctx)
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if bal.Free != 1000 || bal.Locked != 0 || bal.RealizedPnL != 0 {
		t.Errorf("balances = %+v", bal)
	}

	// A later bankroll change must not reset an existing ledger.
	if err := e.InitBankroll(ctx, 5000); err != nil {
		t.Fatalf("InitBankroll again: %v", err)
	}
	bal, _ = e.Balances(ctx)
	if bal.Free != 1000 {
		t.Errorf("free = %v after re-init, want 1000", bal.Free)
	}
}

func TestExecutor_TryExecute_AndSettle(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e := newTestExecutor(store, 1000)
	if err := e.InitBankroll(ctx, 1000); err != nil {
		t.Fatal(err)
	}

	ok, reason, err := e.TryExecute(ctx, testPlan())
	if err != nil {
		t.Fatalf("TryExecute: %v", err)
	}
	if !ok {
		t.Fatalf("not executed: %s", reason)
	}
	if !strings.HasPrefix(reason, "executed trade_id=") {
		t.Errorf("reason = %q", reason)
	}

	bal, _ := e.Balances(ctx)
	if !approx(bal.Free, 990.3) || !approx(bal.Locked, 9.7) || bal.RealizedPnL != 0 {
		t.Errorf("post-open balances = %+v", bal)
	}

	if len(store.orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(store.orders))
	}
	for _, o := range store.orders {
		if o.Status != "filled" || o.Action != "BUY" || o.FilledSize != 10 {
			t.Errorf("order = %+v", o)
		}
	}

	// Not due yet.
	e.now = func() time.Time { return time.Unix(1030, 0) }
	n, err := e.MaybeSettle(ctx)
	if err != nil || n != 0 {
		t.Fatalf("early settle = %d, %v", n, err)
	}

	// Due: cost unlocks, profit realizes.
	e.now = func() time.Time { return time.Unix(1061, 0) }
	n, err = e.MaybeSettle(ctx)
	if err != nil {
		t.Fatalf("MaybeSettle: %v", err)
	}
	if n != 1 {
		t.Fatalf("closed = %d, want 1", n)
	}

	bal, _ = e.Balances(ctx)
	if !approx(bal.Free, 1000.3) || !approx(bal.Locked, 0) || !approx(bal.RealizedPnL, 0.3) {
		t.Errorf("post-settle balances = %+v", bal)
	}

	// Second pass finds nothing open.
	n, err = e.MaybeSettle(ctx)
	if err != nil || n != 0 {
		t.Errorf("resettle = %d, %v", n, err)
	}
}

func TestExecutor_TryExecute_InsufficientLiquidity(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e := newTestExecutor(store, 1000)
	if err := e.InitBankroll(ctx, 1000); err != nil {
		t.Fatal(err)
	}

	plan := testPlan()
	plan.Legs[1].SizeAvail = 4

	ok, reason, err := e.TryExecute(ctx, plan)
	if err != nil {
		t.Fatalf("TryExecute: %v", err)
	}
	if ok {
		t.Fatal("thin leg must not execute")
	}
	if !strings.Contains(reason, "insufficient_liquidity") ||
		!strings.Contains(reason, "avail=4.00") || !strings.Contains(reason, "need=10.00") {
		t.Errorf("reason = %q", reason)
	}

	// No side effects.
	if len(store.trades) != 0 || len(store.orders) != 0 {
		t.Error("rejected plan wrote trade state")
	}
	bal, _ := e.Balances(ctx)
	if bal.Free != 1000 || bal.Locked != 0 {
		t.Errorf("balances moved: %+v", bal)
	}
}

func TestExecutor_TryExecute_InsufficientBalance(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e := newTestExecutor(store, 1000)
	if err := e.InitBankroll(ctx, 105); err != nil {
		t.Fatal(err)
	}

	// cost = 9.7; 105 - 9.7 < floor 100.
	ok, reason, err := e.TryExecute(ctx, testPlan())
	if err != nil {
		t.Fatalf("TryExecute: %v", err)
	}
	if ok {
		t.Fatal("must not execute below the balance floor")
	}
	if !strings.Contains(reason, "insufficient_balance") ||
		!strings.Contains(reason, "free=105.00") || !strings.Contains(reason, "floor=100.00") {
		t.Errorf("reason = %q", reason)
	}
}

func TestExecutor_MaybeSettle_OldestFirst(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e := newTestExecutor(store, 1000)
	if err := e.InitBankroll(ctx, 1000); err != nil {
		t.Fatal(err)
	}

	if ok, reason, _ := e.TryExecute(ctx, testPlan()); !ok {
		t.Fatal(reason)
	}
	e.now = func() time.Time { return time.Unix(1030, 0) }
	if ok, reason, _ := e.TryExecute(ctx, testPlan()); !ok {
		t.Fatal(reason)
	}

	// Only the first trade's holding period has elapsed.
	e.now = func() time.Time { return time.Unix(1075, 0) }
	n, err := e.MaybeSettle(ctx)
	if err != nil {
		t.Fatalf("MaybeSettle: %v", err)
	}
	if n != 1 {
		t.Errorf("closed = %d, want 1", n)
	}

	e.now = func() time.Time { return time.Unix(1095, 0) }
	n, _ = e.MaybeSettle(ctx)
	if n != 1 {
		t.Errorf("closed = %d, want 1", n)
	}

	bal, _ := e.Balances(ctx)
	if !approx(bal.Free, 1000.6) || !approx(bal.Locked, 0) || !approx(bal.RealizedPnL, 0.6) {
		t.Errorf("final balances = %+v", bal)
	}
}

func approx(got, want float64) bool {
	diff := got - want
	return diff < 1e-9 && diff > -1e-9
}
