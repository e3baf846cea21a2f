// Package daemon runs the scan scheduler: one logical control thread that
// refreshes the universe, walks it in cursor batches, persists snapshots,
// evaluates pairs, emits signals, and conditionally drives the paper
// executor. Failures back off exponentially; success resets the backoff.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/mselser95/arb-scanner/internal/arbitrage"
	"github.com/mselser95/arb-scanner/internal/botctl"
	"github.com/mselser95/arb-scanner/internal/paper"
	"github.com/mselser95/arb-scanner/internal/storage"
	"github.com/mselser95/arb-scanner/internal/venue"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/healthprobe"
	"github.com/mselser95/arb-scanner/pkg/httpserver"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// KalshiSource is the venue-A capability the daemon schedules against.
type KalshiSource interface {
	ListTickers(ctx context.Context) ([]string, error)
	FetchTickers(ctx context.Context, tickers []string) ([]types.MarketSnapshot, venue.FetchStats, error)
}

// CrossSource fetches venue-B snapshots for the mapping universe.
type CrossSource interface {
	FetchMappings(ctx context.Context, mappings []types.MarketMapping) ([]types.MarketSnapshot, venue.FetchStats, error)
}

// ControlPlane exposes the live-tunable switch.
type ControlPlane interface {
	Current() botctl.State
}

// PaperEngine is the paper-trading capability the daemon triggers.
type PaperEngine interface {
	InitBankroll(ctx context.Context, bankroll float64) error
	TryExecute(ctx context.Context, plan paper.Plan) (bool, string, error)
	MaybeSettle(ctx context.Context) (int, error)
	Balances(ctx context.Context) (storage.PaperBalances, error)
}

// Options selects what the daemon scans.
type Options struct {
	RunID       string
	UseInternal bool
	UseCross    bool
	Mappings    []types.MarketMapping
}

// Daemon is the scan scheduler.
type Daemon struct {
	cfg     *config.Config
	opts    Options
	store   storage.Store
	kalshi  KalshiSource
	cross   CrossSource
	paper   PaperEngine
	control ControlPlane
	probe   *healthprobe.Probe
	logger  *zap.Logger
	now     func() time.Time

	backoff   *Backoff
	cooldowns *CooldownTracker

	universe    []string
	cursor      int
	lastRefresh    time.Time
	lastPrune      time.Time
	lastCheckpoint time.Time
	lastSettle     time.Time

	mu     sync.Mutex
	status httpserver.RunStatus
}

// New creates the scan daemon. probe may be nil.
func New(cfg *config.Config, opts Options, store storage.Store, kalshi KalshiSource, cross CrossSource, pe PaperEngine, control ControlPlane, probe *healthprobe.Probe, logger *zap.Logger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		opts:      opts,
		store:     store,
		kalshi:    kalshi,
		cross:     cross,
		paper:     pe,
		control:   control,
		probe:     probe,
		logger:    logger,
		now:       time.Now,
		backoff:   NewBackoff(secs(cfg.NetBackoffBase), secs(cfg.NetBackoffCap)),
		cooldowns: NewCooldownTracker(time.Duration(cfg.TradeCooldownSecs) * time.Second),
		cursor:    LoadCursor(cfg.StatePath),
		status: httpserver.RunStatus{
			RunID: opts.RunID,
			Mode:  cfg.Mode,
		},
	}
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RunStatus implements httpserver.StatusSource.
func (d *Daemon) RunStatus() httpserver.RunStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Run executes the scan loop until the context is canceled. Iteration
// failures sleep on the backoff schedule; a termination signal exits cleanly
// with the cursor already persisted.
func (d *Daemon) Run(ctx context.Context) error {
	notes := fmt.Sprintf("use_internal=%t use_cross=%t mappings=%d",
		d.opts.UseInternal, d.opts.UseCross, len(d.opts.Mappings))
	if err := d.store.StartRun(ctx, d.opts.RunID, d.cfg.Mode, notes); err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	d.mu.Lock()
	d.status.StartedAt = d.now().Unix()
	d.mu.Unlock()

	d.logger.Info("daemon-started",
		zap.String("run_id", d.opts.RunID),
		zap.String("mode", d.cfg.Mode),
		zap.Bool("use_internal", d.opts.UseInternal),
		zap.Bool("use_cross", d.opts.UseCross),
		zap.Int("mappings", len(d.opts.Mappings)),
		zap.Int("cursor", d.cursor))

	for {
		if ctx.Err() != nil {
			d.logger.Info("daemon-stopped")
			return nil
		}

		start := d.now()
		err := d.iterate(ctx)
		IterationDuration.Observe(d.now().Sub(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("daemon-stopped")
				return nil
			}

			kind := errorKind(err)
			IterationsTotal.WithLabelValues("error").Inc()
			BackoffsTotal.WithLabelValues(kind).Inc()

			delay := d.backoff.NextSleep()
			d.logger.Error("iteration-failed",
				zap.String("kind", kind),
				zap.Int("attempt", d.backoff.Attempt()),
				zap.Duration("backoff", delay),
				zap.Error(err))

			if !d.sleepFor(ctx, delay) {
				d.logger.Info("daemon-stopped")
				return nil
			}
			continue
		}

		d.backoff.Reset()
		IterationsTotal.WithLabelValues("ok").Inc()
		if d.probe != nil {
			d.probe.SetReady(true)
			d.probe.Beat()
		}

		if !d.sleepFor(ctx, secs(d.cfg.SleepSecs)) {
			d.logger.Info("daemon-stopped")
			return nil
		}
	}
}

// iterate runs one pass of the per-iteration state machine.
func (d *Daemon) iterate(ctx context.Context) error {
	state := d.control.Current()

	if err := d.paper.InitBankroll(ctx, state.Bankroll); err != nil {
		return fmt.Errorf("init bankroll: %w", err)
	}

	if err := d.maintenance(ctx); err != nil {
		return err
	}

	signals := 0

	if d.opts.UseInternal {
		if err := d.refreshUniverse(ctx); err != nil {
			return err
		}

		n, err := d.scanInternal(ctx)
		if err != nil {
			return err
		}
		signals += n
	}

	if d.opts.UseCross && len(d.opts.Mappings) > 0 {
		n, err := d.scanCross(ctx, state)
		if err != nil {
			return err
		}
		signals += n
	}

	d.mu.Lock()
	d.status.Cycles++
	d.status.Signals += int64(signals)
	d.status.LastCycle = d.now().Unix()
	d.status.BotEnabled = state.Enabled
	d.mu.Unlock()

	return nil
}

// maintenance prunes old snapshots, checkpoints the WAL, and settles mature
// paper trades on their respective cadences.
func (d *Daemon) maintenance(ctx context.Context) error {
	now := d.now()

	if d.cfg.SnapshotTTLDays > 0 && now.Sub(d.lastPrune) >= secs(float64(d.cfg.PruneEverySecs)) {
		deleted, err := d.store.PruneSnapshots(ctx, d.cfg.SnapshotTTLDays)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		d.lastPrune = now
		d.logger.Info("snapshots-pruned",
			zap.Int64("deleted", deleted),
			zap.Int("keep_days", d.cfg.SnapshotTTLDays))
	}

	if now.Sub(d.lastCheckpoint) >= secs(float64(d.cfg.WALCheckpointSecs)) {
		if err := d.store.WALCheckpoint(ctx); err != nil {
			return fmt.Errorf("wal checkpoint: %w", err)
		}
		d.lastCheckpoint = now
	}

	if now.Sub(d.lastSettle) >= secs(float64(d.cfg.PaperSettleEverySecs)) {
		closed, err := d.paper.MaybeSettle(ctx)
		if err != nil {
			return fmt.Errorf("settle paper trades: %w", err)
		}
		d.lastSettle = now

		if closed > 0 {
			bal, err := d.paper.Balances(ctx)
			if err != nil {
				return err
			}
			d.logger.Info("paper-trades-settled",
				zap.Int("closed", closed),
				zap.Float64("free", bal.Free),
				zap.Float64("locked", bal.Locked),
				zap.Float64("pnl", bal.RealizedPnL))
		}
	}

	return nil
}

// refreshUniverse replaces the cached ticker universe on its cadence. When a
// refresh fails but a cached universe exists, the daemon keeps scanning on
// the stale list; with no cache at all the error surfaces to the backoff
// loop.
func (d *Daemon) refreshUniverse(ctx context.Context) error {
	now := d.now()
	if len(d.universe) > 0 && now.Sub(d.lastRefresh) < secs(float64(d.cfg.RefreshMarketsSecs)) {
		return nil
	}

	tickers, err := d.kalshi.ListTickers(ctx)
	if err != nil {
		if len(d.universe) == 0 {
			return fmt.Errorf("refresh universe: %w", err)
		}

		d.lastRefresh = now
		d.logger.Warn("universe-refresh-failed",
			zap.String("kind", errorKind(err)),
			zap.Int("cached", len(d.universe)),
			zap.Error(err))
		return nil
	}

	d.universe = tickers
	d.lastRefresh = now
	UniverseSize.Set(float64(len(tickers)))
	d.logger.Info("universe-refreshed", zap.Int("tickers", len(tickers)))
	return nil
}

// scanInternal walks one cursor batch of the universe, persists snapshots,
// and records single-book signals whose buffered edge falls inside the
// internal observation window.
func (d *Daemon) scanInternal(ctx context.Context) (int, error) {
	if len(d.universe) == 0 {
		return 0, nil
	}

	batch, next := NextBatch(d.universe, d.cursor, d.cfg.BatchSize)

	// The cursor is persisted before any fetch so a crash mid-batch skips
	// forward instead of hammering the same tickers.
	if err := SaveCursor(d.cfg.StatePath, next); err != nil {
		return 0, err
	}
	d.cursor = next
	CursorPosition.Set(float64(next))

	snaps, stats, err := d.kalshi.FetchTickers(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("fetch batch: %w", err)
	}

	ts := d.now().Unix()
	stampSnapshots(snaps, ts)

	inserted, err := d.store.InsertSnapshots(ctx, snaps)
	if err != nil {
		return 0, fmt.Errorf("insert snapshots: %w", err)
	}
	SnapshotsInsertedTotal.Add(float64(inserted))

	pol := d.internalPolicy()
	signals := 0
	for _, snap := range snaps {
		res, ok := arbitrage.EvaluateInternal(ts, snap, pol)
		if !ok {
			continue
		}
		if err := d.store.InsertSignal(ctx, &res.Signal); err != nil {
			return signals, fmt.Errorf("insert signal: %w", err)
		}
		signals++
	}

	d.logger.Info("internal-batch-complete",
		zap.Int("batch", len(batch)),
		zap.Int("ok", stats.OK),
		zap.Int("errors", stats.Errors),
		zap.Int("noprices", stats.NoPrices),
		zap.Int("one_sided", stats.OneSided),
		zap.Int("two_sided", stats.TwoSided),
		zap.Int("signals", signals),
		zap.Int("cursor", d.cursor),
		zap.Int("universe", len(d.universe)))

	return signals, nil
}

// scanCross fetches both legs of every mapping, persists snapshots, and
// evaluates both hedge directions. Opportunities are alerted and, when the
// control plane allows, handed to the paper executor.
func (d *Daemon) scanCross(ctx context.Context, state botctl.State) (int, error) {
	tickers := mappedTickers(d.opts.Mappings)

	ksnaps, kstats, err := d.kalshi.FetchTickers(ctx, tickers)
	if err != nil {
		return 0, fmt.Errorf("fetch mapped kalshi: %w", err)
	}

	psnaps, pstats, err := d.cross.FetchMappings(ctx, d.opts.Mappings)
	if err != nil {
		return 0, fmt.Errorf("fetch mapped polymarket: %w", err)
	}

	ts := d.now().Unix()
	stampSnapshots(ksnaps, ts)
	stampSnapshots(psnaps, ts)

	all := make([]types.MarketSnapshot, 0, len(ksnaps)+len(psnaps))
	all = append(all, ksnaps...)
	all = append(all, psnaps...)

	inserted, err := d.store.InsertSnapshots(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("insert snapshots: %w", err)
	}
	SnapshotsInsertedTotal.Add(float64(inserted))

	byKalshi := indexSnapshots(ksnaps)
	byPoly := indexSnapshots(psnaps)

	pol := d.crossPolicy(state)
	signals := 0

	for _, m := range d.opts.Mappings {
		ks, okK := byKalshi[m.KalshiTicker]
		ps, okP := byPoly[m.PolymarketSlug]
		if !okK || !okP {
			continue
		}

		results := arbitrage.EvaluatePair(ts, ks, ps, pol)
		arbitrage.SortResults(results)

		for _, res := range results {
			if err := d.store.InsertSignal(ctx, &res.Signal); err != nil {
				return signals, fmt.Errorf("insert signal: %w", err)
			}
			signals++

			if res.Class != arbitrage.ClassOpportunity {
				continue
			}

			d.logger.Info("opportunity-alert",
				zap.String("kind", res.Signal.Kind),
				zap.String("a", res.Signal.AVenue+":"+res.Signal.AMarketID),
				zap.String("b", res.Signal.BVenue+":"+res.Signal.BMarketID),
				zap.Float64("buf_edge", res.Signal.BufEdge),
				zap.Float64("exec_size", res.Signal.ExecSize))

			if err := d.maybePaperTrade(ctx, state, res); err != nil {
				return signals, err
			}
		}
	}

	d.logger.Info("cross-scan-complete",
		zap.Int("mappings", len(d.opts.Mappings)),
		zap.Int("kalshi_ok", kstats.OK),
		zap.Int("poly_ok", pstats.OK),
		zap.Int("signals", signals),
		zap.String("bot", botLabel(state)),
		zap.Float64("min_buf_edge", pol.MinEdge))

	return signals, nil
}

// maybePaperTrade drives one opportunity through the cooldown and sizing
// rules and into the paper executor.
func (d *Daemon) maybePaperTrade(ctx context.Context, state botctl.State, res arbitrage.Result) error {
	if !state.Enabled || state.Mode != botctl.ModePaper {
		return nil
	}

	now := d.now()
	key := res.CooldownKey()
	if !d.cooldowns.Ready(key, now) {
		d.logger.Debug("paper-cooldown-active", zap.String("key", key))
		return nil
	}

	cost := res.Signal.SumPrice
	sizeCap := 0.0
	if cost > 0 {
		sizeCap = state.MaxPerTrade / cost
	}
	size := math.Min(res.Signal.ExecSize, sizeCap)
	if size < d.cfg.MinExecutableSize {
		size = d.cfg.MinExecutableSize
	}

	plan := paper.Plan{
		Kind:     res.Signal.Kind,
		Size:     size,
		SumPrice: cost,
		BufEdge:  res.Signal.BufEdge,
		Legs: [2]paper.Leg{
			{Venue: res.YesLeg.Venue, MarketID: res.YesLeg.MarketID, Side: res.YesLeg.Side, Price: res.YesLeg.Price, SizeAvail: res.YesLeg.Avail},
			{Venue: res.NoLeg.Venue, MarketID: res.NoLeg.MarketID, Side: res.NoLeg.Side, Price: res.NoLeg.Price, SizeAvail: res.NoLeg.Avail},
		},
		Details: "paper: " + res.Signal.Details,
	}

	ok, reason, err := d.paper.TryExecute(ctx, plan)
	if err != nil {
		return fmt.Errorf("paper execute: %w", err)
	}

	if !ok {
		d.logger.Info("paper-execution-skip",
			zap.String("key", key),
			zap.String("reason", reason))
		return nil
	}

	d.cooldowns.Mark(key, now)

	bal, err := d.paper.Balances(ctx)
	if err != nil {
		return err
	}
	d.logger.Info("paper-execution-ok",
		zap.String("key", key),
		zap.String("reason", reason),
		zap.Float64("free", bal.Free),
		zap.Float64("locked", bal.Locked),
		zap.Float64("pnl", bal.RealizedPnL))

	return nil
}

// internalPolicy is the evaluator policy for single-book recording: the
// observation window replaces the near-miss window and nothing classifies as
// an opportunity, so internal signals never trigger alerts or paper trades.
func (d *Daemon) internalPolicy() arbitrage.Policy {
	ceiling := d.cfg.InternalCeiling
	return arbitrage.Policy{
		MinEdge:          math.MaxFloat64,
		MinExecSize:      0,
		NearMissFloor:    d.cfg.InternalFloor,
		NearMissCeiling:  &ceiling,
		IncludeWeirdSums: d.cfg.NearMissIncludeWeirdSums,
		FeeBufferBPS:     d.cfg.FeeBufferBPS,
	}
}

// crossPolicy derives the cross-venue policy for this iteration. The control
// plane's min_buf_edge overrides the opportunity threshold live.
func (d *Daemon) crossPolicy(state botctl.State) arbitrage.Policy {
	pol := arbitrage.PolicyFromConfig(d.cfg)
	pol.MinEdge = state.MinBufEdge
	return pol
}

// sleepFor sleeps interruptibly. Returns false when the context ended.
func (d *Daemon) sleepFor(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(dur)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func stampSnapshots(snaps []types.MarketSnapshot, ts int64) {
	for i := range snaps {
		snaps[i].TS = ts
	}
}

func indexSnapshots(snaps []types.MarketSnapshot) map[string]types.MarketSnapshot {
	out := make(map[string]types.MarketSnapshot, len(snaps))
	for _, s := range snaps {
		out[s.Market.MarketID] = s
	}
	return out
}

func mappedTickers(mappings []types.MarketMapping) []string {
	seen := make(map[string]struct{}, len(mappings))
	out := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.KalshiTicker]; ok {
			continue
		}
		seen[m.KalshiTicker] = struct{}{}
		out = append(out, m.KalshiTicker)
	}
	sort.Strings(out)
	return out
}

func botLabel(state botctl.State) string {
	if !state.Enabled {
		return "disabled"
	}
	return state.Mode
}

// errorKind classifies an iteration failure for logs and metrics: "net" for
// network-ish failures, "err" for everything else.
func errorKind(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return "net"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "net"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "net"
	}

	return "err"
}
