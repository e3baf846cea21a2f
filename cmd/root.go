// Package cmd hosts the arb-scanner CLI: the scan daemon plus the operator
// tooling around it (control plane, one-shot scan, market listing, mapping
// candidates).
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mselser95/arb-scanner/pkg/types"
	"github.com/spf13/cobra"
)

// errBadConfig marks operator configuration errors; they exit with code 2 so
// supervisors can tell them apart from runtime failures.
var errBadConfig = errors.New("bad configuration")

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "arb-scanner",
	Short: "Read-only cross-venue arbitrage scanner for binary prediction markets",
	Long: `arb-scanner watches binary prediction markets on Kalshi and Polymarket,
normalizes their top-of-book prices, and records cross-venue hedge
opportunities (buy YES on one venue + buy NO on the other for less than $1).

It is strictly read-only: dry-run is pinned on, and the only execution path
is a simulated paper-trading ledger driven through a control-plane file.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; env vars and flags still apply.
		_ = godotenv.Load()
	},
}

// Execute runs the CLI. Configuration errors exit 2, runtime failures 1.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if isConfigError(err) {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}

	os.Exit(1)
}

func isConfigError(err error) bool {
	return errors.Is(err, errBadConfig) ||
		errors.Is(err, types.ErrDryRunDisabled) ||
		errors.Is(err, types.ErrNoMappings)
}
