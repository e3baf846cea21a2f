package cmd

import (
	"fmt"

	"github.com/mselser95/arb-scanner/internal/app"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scan daemon",
	Long: `Runs the scan scheduler and the ops HTTP server (/metrics, /health,
/ready, /api/status).

At least one of --use-cross / --use-internal is required:
  --use-cross     scan the curated Kalshi<->Polymarket mapping universe
  --use-internal  walk the full Kalshi universe recording single-book edges

Flags override environment variables, which override defaults.`,
	RunE: runDaemon,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().String("mode", "", "policy mode: lab or safe (default from MODE env)")
	daemonCmd.Flags().Bool("use-cross", false, "scan the cross-venue mapping universe")
	daemonCmd.Flags().Bool("use-internal", false, "scan the Kalshi universe for single-book edges")
	daemonCmd.Flags().Int("refresh-markets-secs", 0, "universe refresh cadence in seconds")
	daemonCmd.Flags().Int("batch-size", 0, "tickers fetched per iteration")
	daemonCmd.Flags().Float64("sleep-secs", 0, "sleep between iterations in seconds")
	daemonCmd.Flags().String("state-path", "", "cursor state file path")
	daemonCmd.Flags().String("botctl-path", "", "control-plane file path")
	daemonCmd.Flags().String("db-path", "", "sqlite database path")
	daemonCmd.Flags().String("mappings-path", "", "market mapping file path")
	daemonCmd.Flags().Float64("alert-threshold", 0, "buffered-edge alert threshold")
	daemonCmd.Flags().Float64("internal-floor", 0, "internal-scan recording window floor")
	daemonCmd.Flags().Float64("internal-ceiling", 0, "internal-scan recording window ceiling")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("%w: %v", errBadConfig, err)
	}

	if err := applyDaemonFlags(cmd, cfg); err != nil {
		return err
	}

	useCross, _ := cmd.Flags().GetBool("use-cross")
	useInternal, _ := cmd.Flags().GetBool("use-internal")
	if !useCross && !useInternal {
		return fmt.Errorf("%w: at least one of --use-cross / --use-internal is required", errBadConfig)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{
		UseInternal: useInternal,
		UseCross:    useCross,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := application.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

// applyDaemonFlags lays explicitly-set flags over the env-derived config.
// Changing the mode re-derives the mode-dependent policy thresholds.
func applyDaemonFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("mode") {
		mode, _ := flags.GetString("mode")
		if mode != config.ModeLab && mode != config.ModeSafe {
			return fmt.Errorf("%w: --mode must be %q or %q, got %q",
				errBadConfig, config.ModeLab, config.ModeSafe, mode)
		}
		cfg.ApplyMode(mode)
	}

	if flags.Changed("refresh-markets-secs") {
		cfg.RefreshMarketsSecs, _ = flags.GetInt("refresh-markets-secs")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("sleep-secs") {
		cfg.SleepSecs, _ = flags.GetFloat64("sleep-secs")
	}
	if flags.Changed("state-path") {
		cfg.StatePath, _ = flags.GetString("state-path")
	}
	if flags.Changed("botctl-path") {
		cfg.BotctlPath, _ = flags.GetString("botctl-path")
	}
	if flags.Changed("db-path") {
		cfg.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("mappings-path") {
		cfg.MappingsPath, _ = flags.GetString("mappings-path")
	}
	if flags.Changed("alert-threshold") {
		cfg.AlertThreshold, _ = flags.GetFloat64("alert-threshold")
	}
	if flags.Changed("internal-floor") {
		cfg.InternalFloor, _ = flags.GetFloat64("internal-floor")
	}
	if flags.Changed("internal-ceiling") {
		cfg.InternalCeiling, _ = flags.GetFloat64("internal-ceiling")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errBadConfig, err)
	}

	return nil
}
