package main

import (
	"github.com/spf13/cobra"

	"github.com/RudolfRTC/CCS-Charger/internal/app"
)

// newRootCommand builds the vcu-charger command tree over a shared,
// lazily-initialized App.
func newRootCommand() *cobra.Command {
	a := &app.App{}

	command := &cobra.Command{
		Use:   "vcu-charger",
		Short: "Vehicle-side DC fast-charging controller",
		Long: `vcu-charger drives the vehicle control unit side of a DC fast-charging
session over CAN bus: cyclic status transmission, inbound message decode,
charging state supervision, and a safety monitor.`,
		SilenceUsage: true,
	}

	command.PersistentFlags().StringVarP(&a.ConfigPath, "config", "c", "", "path to vcu-charger.yaml (default: search $HOME and .)")
	command.PersistentFlags().StringVarP(&a.ChannelName, "channel", "n", "", "board channel profile to use (default: board's default_channel)")
	command.PersistentFlags().BoolVarP(&a.Debug, "debug", "v", false, "increase verbosity to the debug level")

	command.AddCommand(newRunCommand(a))
	command.AddCommand(newSimulateCommand(a))
	command.AddCommand(newResetCommand(a))
	command.AddCommand(newChannelsCommand(a))

	return command
}
