package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RudolfRTC/CCS-Charger/internal/app"
)

// newRunCommand builds the "run" command: start the engine against
// the configured channel and serve telemetry until interrupted.
func newRunCommand(a *app.App) *cobra.Command {
	var opts app.RunOptions

	command := &cobra.Command{
		Use:   "run",
		Short: "Start the protocol engine and serve telemetry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			stop := make(chan struct{})
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				close(stop)
			}()
			return a.Run(opts, stop)
		},
	}

	command.Flags().StringVar(&opts.HTTPAddr, "http", ":8080", "address to serve the snapshot/websocket telemetry surface on, empty to disable")
	command.Flags().StringVar(&opts.MQTTBrokr, "mqtt-broker", "", "MQTT broker URL to publish telemetry to, empty to disable")

	return command
}

// newSimulateCommand is newRunCommand with the transport forced to
// the in-process simulator, for local development without hardware.
func newSimulateCommand(a *app.App) *cobra.Command {
	var opts app.RunOptions

	command := &cobra.Command{
		Use:   "simulate",
		Short: "Run against the built-in CAN simulator instead of real hardware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.ForceSim = true
			if err := a.Initialize(); err != nil {
				return err
			}
			stop := make(chan struct{})
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				close(stop)
			}()
			return a.Run(opts, stop)
		},
	}

	command.Flags().StringVar(&opts.HTTPAddr, "http", ":8080", "address to serve the snapshot/websocket telemetry surface on, empty to disable")
	command.Flags().StringVar(&opts.MQTTBrokr, "mqtt-broker", "", "MQTT broker URL to publish telemetry to, empty to disable")

	return command
}
