package cmd

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/mselser95/arb-scanner/internal/candidates"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Rank Kalshi ticker candidates for a Polymarket shortlist",
	Long: `Ranks likely Kalshi tickers for each Polymarket market in a shortlist
JSON file (the output of "list-markets --venue polymarket --json").

The score blends character-level similarity with token overlap over the
normalized question text. This command only proposes: nothing is written to
the mapping file, human validation stays in the loop.`,
	RunE: runCandidates,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(candidatesCmd)

	candidatesCmd.Flags().String("poly-json", "", "Polymarket shortlist JSON file")
	candidatesCmd.Flags().String("kalshi-cache", ".data/kalshi_open.json", "Kalshi open-market cache file")
	candidatesCmd.Flags().Bool("refresh-kalshi", false, "refetch the Kalshi market list even if cached")
	candidatesCmd.Flags().Int("top", 8, "candidates to keep per slug")
	candidatesCmd.Flags().String("slug", "", "process only this Polymarket slug")
	candidatesCmd.Flags().Int("max-poly", 0, "cap the number of shortlist entries processed (0 = all)")
	candidatesCmd.Flags().String("out", "", "write the full ranking as JSON to this file")
	candidatesCmd.Flags().Int("max-pages", 6, "Kalshi listing pages fetched on refresh")
	_ = candidatesCmd.MarkFlagRequired("poly-json")
}

func runCandidates(cmd *cobra.Command, args []string) error {
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

	flags := cmd.Flags()
	polyJSON, _ := flags.GetString("poly-json")
	cachePath, _ := flags.GetString("kalshi-cache")
	refresh, _ := flags.GetBool("refresh-kalshi")
	topN, _ := flags.GetInt("top")
	onlySlug, _ := flags.GetString("slug")
	maxPoly, _ := flags.GetInt("max-poly")
	outPath, _ := flags.GetString("out")
	maxPages, _ := flags.GetInt("max-pages")

	poly, err := candidates.LoadPolyList(polyJSON)
	if err != nil {
		return err
	}
	if onlySlug != "" {
		kept := poly[:0]
		for _, m := range poly {
			if m.Slug == onlySlug {
				kept = append(kept, m)
			}
		}
		poly = kept
	}
	if maxPoly > 0 && len(poly) > maxPoly {
		poly = poly[:maxPoly]
	}
	if len(poly) == 0 {
		return fmt.Errorf("%w: no Polymarket markets to process in %s", errBadConfig, polyJSON)
	}

	client := newKalshiClient(cfg, logger)
	markets, err := candidates.LoadOrRefreshKalshiCache(cmd.Context(), client, cachePath, refresh, maxPages, cfg.KalshiLimitPerPage)
	if err != nil {
		return err
	}

	ranked := candidates.Rank(poly, candidates.KalshiTexts(markets), topN)

	out := cmd.OutOrStdout()
	rule := strings.Repeat("=", 100)
	for i, r := range ranked {
		fmt.Fprintln(out, rule)
		fmt.Fprintf(out, "[%d/%d] Poly: %s\n", i+1, len(ranked), r.Polymarket.Slug)
		fmt.Fprintf(out, "Q: %s\n", r.Polymarket.Question)
		fmt.Fprintln(out, "Top Kalshi candidates:")
		for _, c := range r.Candidates {
			text := c.KalshiText
			if len(text) > 120 {
				text = text[:120]
			}
			fmt.Fprintf(out, "  %.3f  %-18s  %s\n", c.Score, c.KalshiTicker, text)
		}
	}

	if outPath != "" {
		data, err := json.MarshalIndent(ranked, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write ranking: %w", err)
		}
		fmt.Fprintln(out, rule)
		fmt.Fprintf(out, "Wrote: %s\n", outPath)
	}

	return nil
}
