package cli

import (
	"github.com/spf13/cobra"

	"desk-sentinel/internal/app"
)

var (
	simulateInstrument string
	simulateStart      float64
	simulateDrift      float64
	simulateSwing      float64
	simulateSteps      int
	simulateNotify     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic price path through the signal and alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Instrument: simulateInstrument,
			Start:      simulateStart,
			Drift:      simulateDrift,
			Swing:      simulateSwing,
			Steps:      simulateSteps,
			Notify:     simulateNotify,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateInstrument, "instrument", "SIM", "Instrument label for the synthetic series")
	simulateCmd.Flags().Float64Var(&simulateStart, "start", 100, "Starting price")
	simulateCmd.Flags().Float64Var(&simulateDrift, "drift", -0.5, "Per-step price drift")
	simulateCmd.Flags().Float64Var(&simulateSwing, "swing", 2, "Sine swing amplitude")
	simulateCmd.Flags().IntVar(&simulateSteps, "steps", 60, "Number of simulated ticks")
	simulateCmd.Flags().BoolVar(&simulateNotify, "notify", false, "Send resulting alerts through the configured transport")
}
