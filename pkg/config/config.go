package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/arb-scanner/pkg/types"
)

// Policy modes.
const (
	ModeLab  = "lab"
	ModeSafe = "safe"
)

// Config holds all application configuration. Loaded once at entry and
// threaded through constructors; live-tunables come exclusively through the
// control-plane file, never through this struct.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Safety. DryRun is pinned true; Validate rejects anything else.
	DryRun bool

	// Policy
	Mode                     string
	AlertOnly                bool
	AlertThreshold           float64
	MinEdgeOpportunity       float64
	MinExecutableSize        float64
	NearMissEdgeFloor        float64
	NearMissEdgeCeiling      *float64
	NearMissIncludeWeirdSums bool
	FeeBufferBPS             int

	// Scan loop
	RefreshMarketsSecs int
	BatchSize          int
	SleepSecs          float64
	PruneEverySecs     int
	SnapshotTTLDays    int
	WALCheckpointSecs  int

	// Internal (single-book) scan recording window
	InternalFloor   float64
	InternalCeiling float64

	// Paper trading
	PaperSettleEverySecs int
	PaperSettleAfterSecs int
	PaperBankroll        float64
	PaperMinFreeBalance  float64
	TradeCooldownSecs    int

	// Network backoff (outer daemon loop)
	NetBackoffBase float64
	NetBackoffCap  float64

	// State and storage paths
	StatePath       string
	BotctlPath      string
	DBPath          string
	MappingsPath    string
	DBBusyTimeoutMS int

	// Kalshi API
	KalshiBaseURL      string
	KalshiPages        int
	KalshiLimitPerPage int
	KalshiRateLimitRPS float64

	// Polymarket API
	PolyGammaURL string
	PolyCLOBURL  string

	// HTTP client behavior (both venues)
	HTTPConnectTimeout time.Duration
	HTTPReadTimeout    time.Duration
	HTTPRetryAttempts  int
	HTTPUserAgent      string
	FetchConcurrency   int
	TokenCacheTTL      time.Duration
}

// LoadFromEnv loads configuration from environment variables with defaults.
// Mode-dependent policy defaults follow the MODE variable; ApplyMode re-derives
// them when a CLI flag overrides the mode.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		DryRun: getBoolOrDefault("DRY_RUN", true),

		AlertOnly:      getBoolOrDefault("ALERT_ONLY", false),
		AlertThreshold: getFloat64OrDefault("ALERT_THRESHOLD", 0.02),
		FeeBufferBPS:   getIntOrDefault("FEE_BUFFER_BPS", 25),

		RefreshMarketsSecs: getIntOrDefault("REFRESH_MARKETS_SECS", 600),
		BatchSize:          getIntOrDefault("BATCH_SIZE", 300),
		SleepSecs:          getFloat64OrDefault("SLEEP_SECS", 2.0),
		PruneEverySecs:     getIntOrDefault("PRUNE_EVERY_SECS", 1800),
		SnapshotTTLDays:    getIntOrDefault("SNAPSHOT_TTL_DAYS", 7),
		WALCheckpointSecs:  getIntOrDefault("WAL_CHECKPOINT_SECS", 1800),

		InternalFloor:   getFloat64OrDefault("INTERNAL_FLOOR", -0.02),
		InternalCeiling: getFloat64OrDefault("INTERNAL_CEILING", 0.02),

		PaperSettleEverySecs: getIntOrDefault("PAPER_SETTLE_EVERY_SECS", 30),
		PaperSettleAfterSecs: getIntOrDefault("PAPER_SETTLE_AFTER_SECS", 3600),
		PaperBankroll:        getFloat64OrDefault("PAPER_BANKROLL", 1000),
		PaperMinFreeBalance:  getFloat64OrDefault("PAPER_MIN_FREE_BALANCE", 0),
		TradeCooldownSecs:    getIntOrDefault("TRADE_COOLDOWN_SECS", 120),

		NetBackoffBase: getFloat64OrDefault("NET_BACKOFF_BASE", 30),
		NetBackoffCap:  getFloat64OrDefault("NET_BACKOFF_CAP", 600),

		StatePath:       getEnvOrDefault("DAEMON_STATE_PATH", ".state/kalshi_cursor.json"),
		BotctlPath:      getEnvOrDefault("BOTCTL_STATE_PATH", ".state/botctl.json"),
		DBPath:          getEnvOrDefault("DB_PATH", ".data/scan.db"),
		MappingsPath:    getEnvOrDefault("MAPPINGS_PATH", ".data/mappings.json"),
		DBBusyTimeoutMS: getIntOrDefault("DB_BUSY_TIMEOUT_MS", 5000),

		KalshiBaseURL:      getEnvOrDefault("KALSHI_BASE_URL", "https://api.elections.kalshi.com/trade-api/v2"),
		KalshiPages:        getIntOrDefault("KALSHI_PAGES", 200),
		KalshiLimitPerPage: getIntOrDefault("KALSHI_LIMIT", 200),
		KalshiRateLimitRPS: getFloat64OrDefault("KALSHI_RATE_LIMIT_RPS", 10),

		PolyGammaURL: getEnvOrDefault("POLY_GAMMA_URL", "https://gamma-api.polymarket.com"),
		PolyCLOBURL:  getEnvOrDefault("POLY_CLOB_URL", "https://clob.polymarket.com"),

		HTTPConnectTimeout: secondsOrDefault("HTTP_CONNECT_TIMEOUT_SECS", 3*time.Second),
		HTTPReadTimeout:    secondsOrDefault("HTTP_READ_TIMEOUT_SECS", 12*time.Second),
		HTTPRetryAttempts:  getIntOrDefault("HTTP_RETRY_ATTEMPTS", 2),
		HTTPUserAgent:      getEnvOrDefault("HTTP_USER_AGENT", "arb-scanner/1.0 (read-only)"),
		FetchConcurrency:   getIntOrDefault("FETCH_CONCURRENCY", 8),
		TokenCacheTTL:      secondsOrDefault("TOKEN_CACHE_TTL_SECS", 24*time.Hour),
	}

	cfg.ApplyMode(getEnvOrDefault("MODE", ModeLab))

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyMode sets the mode and re-derives the mode-dependent policy thresholds.
// Unknown modes fall back to lab.
func (c *Config) ApplyMode(mode string) {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m != ModeLab && m != ModeSafe {
		m = ModeLab
	}
	c.Mode = m

	if m == ModeSafe {
		c.MinEdgeOpportunity = getFloat64OrDefault("SAFE_MIN_EDGE", 0.015)
		c.MinExecutableSize = getFloat64OrDefault("SAFE_MIN_EXEC_SIZE", 10)
		c.NearMissEdgeFloor = getFloat64OrDefault("SAFE_NEAR_MISS_FLOOR", -0.005)
		ceiling := getFloat64OrDefault("SAFE_NEAR_MISS_CEILING", 0.02)
		c.NearMissEdgeCeiling = &ceiling
		c.NearMissIncludeWeirdSums = false
		return
	}

	c.MinEdgeOpportunity = getFloat64OrDefault("LAB_MIN_EDGE", 0.0)
	c.MinExecutableSize = getFloat64OrDefault("LAB_MIN_EXEC_SIZE", 1)
	c.NearMissEdgeFloor = getFloat64OrDefault("LAB_NEAR_MISS_FLOOR", -0.01)
	ceiling := getFloat64OrDefault("LAB_NEAR_MISS_CEILING", 0.02)
	c.NearMissEdgeCeiling = &ceiling
	c.NearMissIncludeWeirdSums = getBoolOrDefault("LAB_INCLUDE_WEIRD_SUMS", true)
}

// PolicySummary renders the policy knobs as a single "key=value, ..." line
// for the one-shot scan report.
func (c *Config) PolicySummary() string {
	ceiling := "none"
	if c.NearMissEdgeCeiling != nil {
		ceiling = fmt.Sprintf("%g", *c.NearMissEdgeCeiling)
	}

	return fmt.Sprintf(
		"dry_run=%t, mode=%s, alert_only=%t, alert_threshold=%g, "+
			"min_edge_opportunity=%g, min_executable_size=%g, "+
			"near_miss_edge_floor=%g, near_miss_edge_ceiling=%s, "+
			"near_miss_include_weird_sums=%t, fee_buffer_bps=%d",
		c.DryRun,
		c.Mode,
		c.AlertOnly,
		c.AlertThreshold,
		c.MinEdgeOpportunity,
		c.MinExecutableSize,
		c.NearMissEdgeFloor,
		ceiling,
		c.NearMissIncludeWeirdSums,
		c.FeeBufferBPS,
	)
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if !c.DryRun {
		return types.ErrDryRunDisabled
	}

	if c.Mode != ModeLab && c.Mode != ModeSafe {
		return fmt.Errorf("MODE must be %q or %q, got %q", ModeLab, ModeSafe, c.Mode)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}

	if c.SleepSecs < 0 {
		return fmt.Errorf("SLEEP_SECS cannot be negative, got %f", c.SleepSecs)
	}

	if c.FeeBufferBPS < 0 {
		return fmt.Errorf("FEE_BUFFER_BPS cannot be negative, got %d", c.FeeBufferBPS)
	}

	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}

	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func secondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return time.Duration(secs * float64(time.Second))
}
