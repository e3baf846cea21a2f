package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  started_at INTEGER NOT NULL,
  mode TEXT NOT NULL,
  notes TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
  ts INTEGER NOT NULL,
  venue TEXT NOT NULL,
  market_id TEXT NOT NULL,
  question TEXT,
  yes_ask REAL,
  no_ask REAL,
  yes_sz REAL,
  no_sz REAL,
  raw JSON,
  PRIMARY KEY (ts, venue, market_id)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_market ON snapshots(venue, market_id, ts);

CREATE TABLE IF NOT EXISTS signals (
  ts INTEGER NOT NULL,
  kind TEXT NOT NULL,
  a_venue TEXT,
  a_market_id TEXT,
  b_venue TEXT,
  b_market_id TEXT,
  sum_price REAL,
  raw_edge REAL,
  buf_edge REAL,
  exec_size REAL,
  details TEXT
);
CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts);

CREATE TABLE IF NOT EXISTS paper_trades (
  trade_id TEXT PRIMARY KEY,
  ts_open INTEGER NOT NULL,
  ts_close INTEGER,
  status TEXT NOT NULL,
  kind TEXT NOT NULL,
  size REAL NOT NULL,
  sum_price REAL NOT NULL,
  buf_edge REAL,
  expected_profit REAL,
  legs JSON,
  details TEXT
);
CREATE INDEX IF NOT EXISTS idx_paper_trades_status ON paper_trades(status, ts_open);

CREATE TABLE IF NOT EXISTS paper_orders (
  order_id TEXT PRIMARY KEY,
  trade_id TEXT NOT NULL,
  ts INTEGER NOT NULL,
  venue TEXT NOT NULL,
  market_id TEXT NOT NULL,
  side TEXT NOT NULL,
  action TEXT NOT NULL,
  price REAL NOT NULL,
  size REAL NOT NULL,
  status TEXT NOT NULL,
  filled_size REAL NOT NULL,
  details TEXT
);
CREATE INDEX IF NOT EXISTS idx_paper_orders_trade ON paper_orders(trade_id);

CREATE TABLE IF NOT EXISTS paper_state (
  key TEXT PRIMARY KEY,
  value TEXT
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// SQLiteStore implements Store using a file-backed SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// SQLiteConfig holds SQLite storage configuration.
type SQLiteConfig struct {
	Path          string
	BusyTimeoutMS int
	Logger        *zap.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
// A single connection is used so WAL writers never contend with each other.
func NewSQLiteStore(cfg *SQLiteConfig) (*SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && !strings.HasPrefix(cfg.Path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: cfg.Logger,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	cfg.Logger.Info("sqlite-store-opened", zap.String("path", cfg.Path))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	version := 0
	// Fresh databases have no schema_version table yet; the scan error is
	// expected then and version stays 0.
	_ = s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		s.logger.Info("applied-migration", zap.Int("version", 1))
	}

	return nil
}

// StartRun records the start of a daemon run.
func (s *SQLiteStore) StartRun(ctx context.Context, runID, mode, notes string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO runs(run_id, started_at, mode, notes) VALUES(?,?,?,?)",
		runID, now, mode, notes,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	s.logger.Debug("run-recorded",
		zap.String("run-id", runID),
		zap.String("mode", mode))
	return nil
}

// InsertSnapshots stores top-of-book snapshots. The (ts, venue, market_id)
// primary key makes re-inserts of the same tick a no-op.
func (s *SQLiteStore) InsertSnapshots(ctx context.Context, snaps []types.MarketSnapshot) (int64, error) {
	var n int64
	for i := range snaps {
		snap := &snaps[i]

		raw, err := json.Marshal(snap.Book)
		if err != nil {
			return n, fmt.Errorf("marshal book: %w", err)
		}

		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO snapshots(ts, venue, market_id, question, yes_ask, no_ask, yes_sz, no_sz, raw)
			 VALUES(?,?,?,?,?,?,?,?,?)`,
			snap.TS,
			snap.Market.Venue,
			snap.Market.MarketID,
			snap.Market.Question,
			snap.Book.YesAsk,
			snap.Book.NoAsk,
			snap.Book.YesSize,
			snap.Book.NoSize,
			string(raw),
		)
		if err != nil {
			return n, fmt.Errorf("insert snapshot: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return n, fmt.Errorf("rows affected: %w", err)
		}
		n += rows
	}

	SnapshotsInsertedTotal.Add(float64(n))
	return n, nil
}

// InsertSignal stores an opportunity or near-miss signal.
func (s *SQLiteStore) InsertSignal(ctx context.Context, sig *types.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals(ts, kind, a_venue, a_market_id, b_venue, b_market_id,
		                     sum_price, raw_edge, buf_edge, exec_size, details)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		sig.TS,
		sig.Kind,
		sig.AVenue,
		sig.AMarketID,
		nullIfEmpty(sig.BVenue),
		nullIfEmpty(sig.BMarketID),
		sig.SumPrice,
		sig.RawEdge,
		sig.BufEdge,
		sig.ExecSize,
		sig.Details,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}

	SignalsInsertedTotal.Inc()
	s.logger.Debug("signal-stored",
		zap.String("kind", sig.Kind),
		zap.String("a-market-id", sig.AMarketID),
		zap.Float64("buf-edge", sig.BufEdge))
	return nil
}

// PruneSnapshots deletes snapshots older than keepDays days.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, keepDays int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour).Unix()

	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	SnapshotsPrunedTotal.Add(float64(deleted))
	return deleted, nil
}

// WALCheckpoint truncates the write-ahead log so the db file on disk stays
// compact between prunes.
func (s *SQLiteStore) WALCheckpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// PaperGet reads a paper-state value into out. Values are stored as JSON.
func (s *SQLiteStore) PaperGet(ctx context.Context, key string, out interface{}) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM paper_state WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select paper state: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode paper state %q: %w", key, err)
	}
	return true, nil
}

// PaperSet writes a paper-state value as JSON.
func (s *SQLiteStore) PaperSet(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode paper state %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO paper_state(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
		key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("upsert paper state: %w", err)
	}
	return nil
}

// PaperOpenTrade records a trade, its order fills, and the balance move in
// one transaction. Either everything is visible after the call or nothing is.
func (s *SQLiteStore) PaperOpenTrade(ctx context.Context, tr *PaperTrade, orders []*PaperOrder, bal PaperBalances) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin paper open: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO paper_trades(trade_id, ts_open, status, kind, size, sum_price,
		                          buf_edge, expected_profit, legs, details)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		tr.TradeID, tr.TSOpen, tr.Status, tr.Kind, tr.Size, tr.SumPrice,
		tr.BufEdge, tr.ExpectedProfit, tr.Legs, tr.Details,
	)
	if err != nil {
		return fmt.Errorf("insert paper trade: %w", err)
	}

	for _, o := range orders {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO paper_orders(order_id, trade_id, ts, venue, market_id, side, action,
			                          price, size, status, filled_size, details)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
			o.OrderID, o.TradeID, o.TS, o.Venue, o.MarketID, o.Side, o.Action,
			o.Price, o.Size, o.Status, o.FilledSize, o.Details,
		)
		if err != nil {
			return fmt.Errorf("insert paper order: %w", err)
		}
	}

	if err := setBalancesTx(ctx, tx, bal); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit paper open: %w", err)
	}

	PaperTradesTotal.Inc()
	s.logger.Debug("paper-trade-stored",
		zap.String("trade-id", tr.TradeID),
		zap.Float64("size", tr.Size),
		zap.Float64("sum-price", tr.SumPrice))
	return nil
}

// PaperListOpenTrades returns open trades, oldest first, for settlement.
func (s *SQLiteStore) PaperListOpenTrades(ctx context.Context, limit int) ([]OpenTrade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, ts_open, size, sum_price, expected_profit
		 FROM paper_trades WHERE status = 'open' ORDER BY ts_open ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select open trades: %w", err)
	}
	defer rows.Close()

	var trades []OpenTrade
	for rows.Next() {
		var tr OpenTrade
		if err := rows.Scan(&tr.TradeID, &tr.TSOpen, &tr.Size, &tr.SumPrice, &tr.ExpectedProfit); err != nil {
			return nil, fmt.Errorf("scan open trade: %w", err)
		}
		trades = append(trades, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open trades: %w", err)
	}
	return trades, nil
}

// PaperSettleTrade closes an open trade and writes the settled balances in
// one transaction. The status='open' filter makes settlement exactly-once:
// a trade already closed leaves the balances untouched.
func (s *SQLiteStore) PaperSettleTrade(ctx context.Context, tradeID string, tsClose int64, bal PaperBalances) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin paper settle: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		"UPDATE paper_trades SET ts_close = ?, status = 'closed' WHERE trade_id = ? AND status = 'open'",
		tsClose, tradeID,
	)
	if err != nil {
		return false, fmt.Errorf("close paper trade: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := setBalancesTx(ctx, tx, bal); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit paper settle: %w", err)
	}
	return true, nil
}

// setBalancesTx upserts the three ledger keys inside an open transaction.
func setBalancesTx(ctx context.Context, tx *sql.Tx, bal PaperBalances) error {
	for _, kv := range []struct {
		key   string
		value float64
	}{
		{"free_balance", bal.Free},
		{"locked_balance", bal.Locked},
		{"realized_pnl", bal.RealizedPnL},
	} {
		key, value := kv.key, kv.value
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode paper state %q: %w", key, err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO paper_state(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
			key, string(raw),
		)
		if err != nil {
			return fmt.Errorf("upsert paper state %q: %w", key, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing-sqlite-store")
	return s.db.Close()
}

// nullIfEmpty maps empty strings to NULL. Internal signals have no b-leg.
func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}

	return v
}
