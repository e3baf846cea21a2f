package cmd

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/mselser95/arb-scanner/internal/botctl"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	ctlCmd = &cobra.Command{
		Use:   "ctl",
		Short: "Inspect and mutate the paper-trading control plane",
		Long: `Reads and writes the control-plane file the daemon polls for
live-tuning. Writes are atomic (write-temp-then-rename), so a concurrently
running daemon never observes a torn state.`,
	}

	ctlStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the merged control-plane state as JSON",
		RunE:  runCtlStatus,
	}

	ctlOnCmd = &cobra.Command{
		Use:   "on",
		Short: "Enable the paper-trading bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCtlMutate(cmd, func(s *botctl.State) {
				s.Enabled = true
				if s.Mode == botctl.ModeOff {
					s.Mode = botctl.ModePaper
				}
			})
		},
	}

	ctlOffCmd = &cobra.Command{
		Use:   "off",
		Short: "Disable the paper-trading bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCtlMutate(cmd, func(s *botctl.State) {
				s.Enabled = false
				s.Mode = botctl.ModeOff
			})
		},
	}

	ctlSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Set individual control-plane fields",
		RunE:  runCtlSet,
	}
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.AddCommand(ctlStatusCmd, ctlOnCmd, ctlOffCmd, ctlSetCmd)

	ctlCmd.PersistentFlags().String("state-path", "", "control-plane file path (default from BOTCTL_STATE_PATH)")

	ctlSetCmd.Flags().Float64("bankroll", 0, "paper bankroll in dollars")
	ctlSetCmd.Flags().Float64("max-per-trade", 0, "maximum dollars locked per trade")
	ctlSetCmd.Flags().Float64("min-buf-edge", 0, "minimum buffered edge to act on")
	ctlSetCmd.Flags().Int("enabled", -1, "enable (1) or disable (0) the bot")
	ctlSetCmd.Flags().String("mode", "", "trading mode: alerts, paper or off")
}

func ctlContext(cmd *cobra.Command) (string, botctl.State, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return "", botctl.State{}, fmt.Errorf("%w: %v", errBadConfig, err)
	}

	path := cfg.BotctlPath
	if override, _ := cmd.Flags().GetString("state-path"); override != "" {
		path = override
	}

	return path, botctl.Defaults(cfg.AlertThreshold), nil
}

func runCtlStatus(cmd *cobra.Command, args []string) error {
	path, defaults, err := ctlContext(cmd)
	if err != nil {
		return err
	}

	state, err := botctl.Read(path, defaults)
	if err != nil {
		return err
	}

	return printState(cmd, state)
}

func runCtlMutate(cmd *cobra.Command, mutate func(*botctl.State)) error {
	path, defaults, err := ctlContext(cmd)
	if err != nil {
		return err
	}

	state, err := botctl.Update(path, defaults, mutate)
	if err != nil {
		return err
	}

	return printState(cmd, state)
}

func runCtlSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	if mode, _ := flags.GetString("mode"); flags.Changed("mode") && !botctl.ValidMode(mode) {
		return fmt.Errorf("%w: invalid mode %q", errBadConfig, mode)
	}

	return runCtlMutate(cmd, func(s *botctl.State) {
		if flags.Changed("bankroll") {
			s.Bankroll, _ = flags.GetFloat64("bankroll")
		}
		if flags.Changed("max-per-trade") {
			s.MaxPerTrade, _ = flags.GetFloat64("max-per-trade")
		}
		if flags.Changed("min-buf-edge") {
			s.MinBufEdge, _ = flags.GetFloat64("min-buf-edge")
		}
		if flags.Changed("enabled") {
			enabled, _ := flags.GetInt("enabled")
			s.Enabled = enabled != 0
		}
		if flags.Changed("mode") {
			s.Mode, _ = flags.GetString("mode")
		}
	})
}

func printState(cmd *cobra.Command, state botctl.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
