package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// openTestStore opens an in-memory SQLite store and runs migrations.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(&SQLiteConfig{
		Path:          ":memory:",
		BusyTimeoutMS: 5000,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(ts int64, venue, marketID string, yesAsk, noAsk float64) types.MarketSnapshot {
	return types.MarketSnapshot{
		Market: types.Market{
			Venue:    venue,
			MarketID: marketID,
			Question: "Will it settle yes?",
			Outcomes: []string{"Yes", "No"},
		},
		Book: types.OrderBookTop{
			YesAsk:  &yesAsk,
			NoAsk:   &noAsk,
			YesSize: 25,
			NoSize:  40,
		},
		TS: ts,
	}
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := openTestStore(t)

	// Running migrations again must be a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSQLiteStore_StartRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, "run-1", "lab", "use_kalshi=true use_mapping=false"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	// Re-recording the same run id replaces, not errors.
	if err := s.StartRun(ctx, "run-1", "safe", ""); err != nil {
		t.Fatalf("StartRun replace: %v", err)
	}

	var mode string
	if err := s.db.QueryRow("SELECT mode FROM runs WHERE run_id = 'run-1'").Scan(&mode); err != nil {
		t.Fatalf("select run: %v", err)
	}
	if mode != "safe" {
		t.Errorf("mode = %s, want safe", mode)
	}
}

func TestSQLiteStore_InsertSnapshots_DuplicatesIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snaps := []types.MarketSnapshot{
		testSnapshot(1000, types.VenueKalshi, "KXBTC-25", 0.52, 0.49),
		testSnapshot(1000, types.VenuePolymarket, "btc-100k", 0.51, 0.48),
	}

	n, err := s.InsertSnapshots(ctx, snaps)
	if err != nil {
		t.Fatalf("InsertSnapshots: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	// Same (ts, venue, market_id) rows are ignored on re-insert.
	n, err = s.InsertSnapshots(ctx, snaps)
	if err != nil {
		t.Fatalf("InsertSnapshots repeat: %v", err)
	}
	if n != 0 {
		t.Errorf("inserted on repeat = %d, want 0", n)
	}
}

func TestSQLiteStore_InsertSnapshots_NilAsks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap := types.MarketSnapshot{
		Market: types.Market{Venue: types.VenueKalshi, MarketID: "ONE-SIDED", Outcomes: []string{"Yes", "No"}},
		Book:   types.OrderBookTop{YesAsk: nil, NoAsk: nil},
		TS:     2000,
	}

	n, err := s.InsertSnapshots(ctx, []types.MarketSnapshot{snap})
	if err != nil {
		t.Fatalf("InsertSnapshots: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	var yesAsk *float64
	if err := s.db.QueryRow("SELECT yes_ask FROM snapshots WHERE market_id = 'ONE-SIDED'").Scan(&yesAsk); err != nil {
		t.Fatalf("select snapshot: %v", err)
	}
	if yesAsk != nil {
		t.Errorf("yes_ask = %v, want NULL", *yesAsk)
	}
}

func TestSQLiteStore_InsertSignal_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sig := &types.Signal{
		TS:        3000,
		Kind:      types.SignalCrossVenue,
		AVenue:    types.VenueKalshi,
		AMarketID: "KXBTC-25",
		BVenue:    types.VenuePolymarket,
		BMarketID: "btc-100k",
		SumPrice:  0.97,
		RawEdge:   0.03,
		BufEdge:   0.0276,
		ExecSize:  25,
		Details:   "BUY yes@kalshi + no@poly",
	}
	if err := s.InsertSignal(ctx, sig); err != nil {
		t.Fatalf("InsertSignal: %v", err)
	}

	var kind, details string
	var bufEdge float64
	err := s.db.QueryRow("SELECT kind, buf_edge, details FROM signals WHERE ts = 3000").Scan(&kind, &bufEdge, &details)
	if err != nil {
		t.Fatalf("select signal: %v", err)
	}
	if kind != types.SignalCrossVenue {
		t.Errorf("kind = %s, want %s", kind, types.SignalCrossVenue)
	}
	if bufEdge != 0.0276 {
		t.Errorf("buf_edge = %v, want 0.0276", bufEdge)
	}
	if details != sig.Details {
		t.Errorf("details = %s, want %s", details, sig.Details)
	}
}

func TestSQLiteStore_PruneSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().Unix()
	old := now - 8*24*3600
	fresh := now - 3600

	snaps := []types.MarketSnapshot{
		testSnapshot(old, types.VenueKalshi, "OLD", 0.5, 0.5),
		testSnapshot(fresh, types.VenueKalshi, "FRESH", 0.5, 0.5),
	}
	if _, err := s.InsertSnapshots(ctx, snaps); err != nil {
		t.Fatalf("InsertSnapshots: %v", err)
	}

	deleted, err := s.PruneSnapshots(ctx, 7)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if err := s.WALCheckpoint(ctx); err != nil {
		t.Fatalf("WALCheckpoint: %v", err)
	}

	var remaining int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&remaining); err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestSQLiteStore_PaperState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var free float64
	found, err := s.PaperGet(ctx, "free_balance", &free)
	if err != nil {
		t.Fatalf("PaperGet: %v", err)
	}
	if found {
		t.Fatal("expected free_balance to be absent initially")
	}

	if err := s.PaperSet(ctx, "free_balance", 1000.0); err != nil {
		t.Fatalf("PaperSet: %v", err)
	}
	if err := s.PaperSet(ctx, "bankroll_set", true); err != nil {
		t.Fatalf("PaperSet bool: %v", err)
	}

	found, err = s.PaperGet(ctx, "free_balance", &free)
	if err != nil {
		t.Fatalf("PaperGet: %v", err)
	}
	if !found || free != 1000.0 {
		t.Errorf("free_balance = %v found=%v, want 1000 true", free, found)
	}

	var set bool
	found, err = s.PaperGet(ctx, "bankroll_set", &set)
	if err != nil {
		t.Fatalf("PaperGet bool: %v", err)
	}
	if !found || !set {
		t.Errorf("bankroll_set = %v found=%v, want true true", set, found)
	}

	// Overwrite
	if err := s.PaperSet(ctx, "free_balance", 900.5); err != nil {
		t.Fatalf("PaperSet overwrite: %v", err)
	}
	if _, err := s.PaperGet(ctx, "free_balance", &free); err != nil {
		t.Fatalf("PaperGet: %v", err)
	}
	if free != 900.5 {
		t.Errorf("free_balance = %v, want 900.5", free)
	}
}

func TestSQLiteStore_PaperTradeLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trades := []*PaperTrade{
		{TradeID: "t-late", TSOpen: 100, Status: "open", Kind: types.SignalCrossVenue, Size: 10, SumPrice: 0.97, BufEdge: 0.0276, ExpectedProfit: 0.3, Legs: `{"legs":[]}`},
		{TradeID: "t-early", TSOpen: 50, Status: "open", Kind: types.SignalCrossVenue, Size: 5, SumPrice: 0.95, BufEdge: 0.047, ExpectedProfit: 0.25, Legs: `{"legs":[]}`},
	}
	for _, tr := range trades {
		orders := []*PaperOrder{{
			OrderID: "o-" + tr.TradeID, TradeID: tr.TradeID, TS: tr.TSOpen,
			Venue: types.VenueKalshi, MarketID: "KXBTC-25",
			Side: "YES", Action: "BUY", Price: 0.47, Size: tr.Size,
			Status: "filled", FilledSize: tr.Size, Details: "paper fill at top-of-book",
		}}
		bal := PaperBalances{Free: 1000 - tr.Size*tr.SumPrice, Locked: tr.Size * tr.SumPrice}
		if err := s.PaperOpenTrade(ctx, tr, orders, bal); err != nil {
			t.Fatalf("PaperOpenTrade(%s): %v", tr.TradeID, err)
		}
	}

	open, err := s.PaperListOpenTrades(ctx, 100)
	if err != nil {
		t.Fatalf("PaperListOpenTrades: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open trades = %d, want 2", len(open))
	}
	// Oldest first
	if open[0].TradeID != "t-early" || open[1].TradeID != "t-late" {
		t.Errorf("order = [%s %s], want [t-early t-late]", open[0].TradeID, open[1].TradeID)
	}

	var orderCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM paper_orders").Scan(&orderCount); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 2 {
		t.Errorf("orders = %d, want 2", orderCount)
	}

	settled, err := s.PaperSettleTrade(ctx, "t-early", 4000, PaperBalances{Free: 1000.25, Locked: 9.7, RealizedPnL: 0.25})
	if err != nil {
		t.Fatalf("PaperSettleTrade: %v", err)
	}
	if !settled {
		t.Fatal("expected t-early to settle")
	}

	// Settling an already-closed trade is a no-op and must not touch balances.
	settled, err = s.PaperSettleTrade(ctx, "t-early", 5000, PaperBalances{Free: -1, Locked: -1, RealizedPnL: -1})
	if err != nil {
		t.Fatalf("PaperSettleTrade repeat: %v", err)
	}
	if settled {
		t.Error("expected repeat settle to be a no-op")
	}

	var free float64
	if found, err := s.PaperGet(ctx, "free_balance", &free); err != nil || !found {
		t.Fatalf("PaperGet free_balance: found=%v err=%v", found, err)
	}
	if free != 1000.25 {
		t.Errorf("free_balance = %v, want 1000.25", free)
	}

	open, err = s.PaperListOpenTrades(ctx, 100)
	if err != nil {
		t.Fatalf("PaperListOpenTrades after close: %v", err)
	}
	if len(open) != 1 || open[0].TradeID != "t-late" {
		t.Errorf("open after close = %v, want only t-late", open)
	}
}

// sqlmock tests assert the SQL each method issues.

func TestSQLiteStore_InsertSignal_SQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db, logger: zap.NewNop()}

	// Internal signals carry no b-leg; empty refs must be stored as NULL.
	sig := &types.Signal{
		TS:        42,
		Kind:      types.SignalKalshiInternal,
		AVenue:    types.VenueKalshi,
		AMarketID: "KXFED-25",
		SumPrice:  1.2,
		RawEdge:   -0.2,
		BufEdge:   -0.203,
		ExecSize:  15,
		Details:   "WEIRD_SUM question=Will rates rise?",
	}

	mock.ExpectExec("INSERT INTO signals").
		WithArgs(
			sig.TS, sig.Kind, sig.AVenue, sig.AMarketID, nil, nil,
			sig.SumPrice, sig.RawEdge, sig.BufEdge, sig.ExecSize, sig.Details,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.InsertSignal(context.Background(), sig); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_InsertSignal_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db, logger: zap.NewNop()}

	mock.ExpectExec("INSERT INTO signals").
		WillReturnError(sqlmock.ErrCancelled)

	if err := s.InsertSignal(context.Background(), &types.Signal{}); err == nil {
		t.Error("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_PaperSettleTrade_SQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db, logger: zap.NewNop()}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE paper_trades SET ts_close").
		WithArgs(int64(9000), "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_state").
		WithArgs("free_balance", "1000.3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_state").
		WithArgs("locked_balance", "0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_state").
		WithArgs("realized_pnl", "0.3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	settled, err := s.PaperSettleTrade(context.Background(), "t-1", 9000,
		PaperBalances{Free: 1000.3, Locked: 0, RealizedPnL: 0.3})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !settled {
		t.Error("expected settled = true")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_PaperSettleTrade_AlreadyClosed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db, logger: zap.NewNop()}

	// No rows transition: the balance upserts never run.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE paper_trades SET ts_close").
		WithArgs(int64(9000), "t-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	settled, err := s.PaperSettleTrade(context.Background(), "t-1", 9000, PaperBalances{})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if settled {
		t.Error("expected settled = false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLiteStore_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	s := &SQLiteStore{db: db, logger: zap.NewNop()}

	mock.ExpectClose()

	if err := s.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStore_Interface(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	var _ Store = &SQLiteStore{db: db, logger: zap.NewNop()}
}
