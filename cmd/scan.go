package cmd

import (
	"context"
	"fmt"

	"github.com/mselser95/arb-scanner/internal/arbitrage"
	"github.com/mselser95/arb-scanner/internal/mapping"
	"github.com/mselser95/arb-scanner/internal/venue"
	"github.com/mselser95/arb-scanner/pkg/cache"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot scan and print the opportunity table",
	Long: `Fetches one snapshot set from each venue, pairs markets by normalized
question text, and prints one report line per priced pair.

With --use-stub (the default) both venues are served by fixed offline
fixtures, which makes the command a pipeline wiring check. With
--use-stub=false the scan runs against the live venues over the curated
mapping file.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("use-stub", true, "serve both venues from offline stub fixtures")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("%w: %v", errBadConfig, err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	useStub, _ := cmd.Flags().GetBool("use-stub")

	providerA, providerB, err := scanProviders(cmd.Context(), cfg, logger, useStub)
	if err != nil {
		return err
	}

	snapsA, err := providerA.FetchSnapshots(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch %s snapshots: %w", providerA.Name(), err)
	}

	snapsB, err := providerB.FetchSnapshots(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch %s snapshots: %w", providerB.Name(), err)
	}

	opportunities := arbitrage.ComputeOpportunities(snapsA, snapsB, cfg.FeeBufferBPS)
	if cfg.AlertOnly {
		kept := opportunities[:0]
		for _, o := range opportunities {
			if o.NetEdge >= cfg.AlertThreshold {
				kept = append(kept, o)
			}
		}
		opportunities = kept
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "policy: %s\n", cfg.PolicySummary())
	fmt.Fprintf(out, "pairs: %d (%s=%d, %s=%d)\n",
		len(opportunities), providerA.Name(), len(snapsA), providerB.Name(), len(snapsB))

	if len(opportunities) > 0 {
		fmt.Fprintln(out, arbitrage.FormatOpportunityTable(opportunities))
	}

	return nil
}

func scanProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger, useStub bool) (venue.Provider, venue.Provider, error) {
	if useStub {
		return venue.NewStubProvider(types.VenueKalshi), venue.NewStubProvider(types.VenuePolymarket), nil
	}

	mappings, err := mapping.Load(cfg.MappingsPath)
	if err != nil {
		return nil, nil, err
	}

	tokenCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("setup cache: %w", err)
	}

	kalshiProvider := newKalshiProvider(cfg, logger)
	polyProvider, resolver := newPolymarketProvider(cfg, logger, tokenCache, mappings)

	if err := mapping.ResolveTokens(ctx, resolver, mappings, logger); err != nil {
		return nil, nil, err
	}

	return kalshiProvider, polyProvider, nil
}
