package cmd

import (
	"fmt"
	"regexp"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"github.com/mselser95/arb-scanner/internal/venue/kalshi"
	"github.com/mselser95/arb-scanner/internal/venue/polymarket"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Content classes routinely mismatched across venues; excluded on request
// when bootstrapping mappings.
//
//nolint:gochecknoglobals // compiled once
var (
	reSports = regexp.MustCompile(`(?i)\b(nfl|nba|mlb|nhl|super bowl|champions|real madrid|barcelona|injury|injured|vs\.?|match|game)\b`)
	reCeleb  = regexp.MustCompile(`(?i)\b(grammy|oscars|oscar|celebrity|actor|actress|singer|rapper|gaga|taylor|kanye)\b`)
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List open markets on one venue for mapping bootstrap",
	Long: `Lists open markets on the selected venue ordered by activity:
Polymarket by Gamma liquidity, Kalshi by listing order.

The JSON output of the polymarket listing is the shortlist format the
candidates command consumes.`,
	RunE: runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)

	listMarketsCmd.Flags().String("venue", "", "venue to list: kalshi or polymarket")
	listMarketsCmd.Flags().Int("limit", 50, "maximum markets to list")
	listMarketsCmd.Flags().Float64("min-liquidity", 1000, "minimum Gamma liquidity (polymarket only)")
	listMarketsCmd.Flags().Bool("binary-only", false, "keep only strict yes/no markets")
	listMarketsCmd.Flags().Bool("exclude-sports", false, "drop sports-class questions")
	listMarketsCmd.Flags().Bool("exclude-celebrity", false, "drop celebrity-class questions")
	listMarketsCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	_ = listMarketsCmd.MarkFlagRequired("venue")
}

type listFilters struct {
	binaryOnly  bool
	noSports    bool
	noCelebrity bool
}

func (f listFilters) keepQuestion(q string) bool {
	if f.noSports && reSports.MatchString(q) {
		return false
	}
	if f.noCelebrity && reCeleb.MatchString(q) {
		return false
	}
	return true
}

func runListMarkets(cmd *cobra.Command, args []string) error {
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
	venueName, _ := flags.GetString("venue")
	limit, _ := flags.GetInt("limit")
	minLiquidity, _ := flags.GetFloat64("min-liquidity")
	asJSON, _ := flags.GetBool("json")

	filters := listFilters{}
	filters.binaryOnly, _ = flags.GetBool("binary-only")
	filters.noSports, _ = flags.GetBool("exclude-sports")
	filters.noCelebrity, _ = flags.GetBool("exclude-celebrity")

	switch venueName {
	case "polymarket":
		return listPolymarket(cmd, cfg, logger, limit, minLiquidity, filters, asJSON)
	case "kalshi":
		return listKalshi(cmd, cfg, logger, limit, filters, asJSON)
	default:
		return fmt.Errorf("%w: --venue must be kalshi or polymarket, got %q", errBadConfig, venueName)
	}
}

func listPolymarket(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, limit int, minLiquidity float64, filters listFilters, asJSON bool) error {
	client := newPolymarketClient(cfg, logger)

	markets, err := client.ListActiveMarkets(cmd.Context(), limit, minLiquidity)
	if err != nil {
		return fmt.Errorf("list polymarket markets: %w", err)
	}

	kept := make([]polymarket.GammaMarket, 0, len(markets))
	for _, m := range markets {
		if filters.binaryOnly && !m.IsBinary() {
			continue
		}
		if !filters.keepQuestion(m.Question) {
			continue
		}
		kept = append(kept, m)
	}

	if asJSON {
		type entry struct {
			Slug      string                `json:"slug"`
			Liquidity float64               `json:"liquidityNum"`
			Question  string                `json:"question"`
			Outcomes  polymarket.StringList `json:"outcomes"`
		}
		out := make([]entry, 0, len(kept))
		for _, m := range kept {
			out = append(out, entry{Slug: m.Slug, Liquidity: m.LiquidityNum, Question: m.Question, Outcomes: m.Outcomes})
		}
		return printJSON(cmd, out)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tLIQUIDITY\tQUESTION")
	for _, m := range kept {
		fmt.Fprintf(w, "%s\t%.0f\t%s\n", m.Slug, m.LiquidityNum, m.Question)
	}
	return w.Flush()
}

func listKalshi(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, limit int, filters listFilters, asJSON bool) error {
	client := newKalshiClient(cfg, logger)

	markets, err := client.ListOpenMarkets(cmd.Context(), cfg.KalshiPages, cfg.KalshiLimitPerPage)
	if err != nil {
		return fmt.Errorf("list kalshi markets: %w", err)
	}

	markets = kalshi.SortByActivity(kalshi.Blacklist(markets))

	kept := make([]kalshi.Market, 0, limit)
	for _, m := range markets {
		if !filters.keepQuestion(m.Text()) {
			continue
		}
		kept = append(kept, m)
		if len(kept) >= limit {
			break
		}
	}

	if asJSON {
		return printJSON(cmd, kept)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tVOLUME24H\tTEXT")
	for _, m := range kept {
		fmt.Fprintf(w, "%s\t%.0f\t%s\n", m.Ticker, m.Volume24h, m.Text())
	}
	return w.Flush()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
