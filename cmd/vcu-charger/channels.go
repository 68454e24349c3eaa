package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RudolfRTC/CCS-Charger/internal/app"
)

// newChannelsCommand builds the "channels" command: list the board's
// configured CAN channel profiles.
func newChannelsCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "channels",
		Short: "List configured CAN channel profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			for _, c := range a.ListChannels() {
				marker := " "
				if c.Name == a.Board.Default {
					marker = "*"
				}
				fmt.Printf("%s %-12s backend=%-10s device=%-8s baud=%d\n", marker, c.Name, c.Backend, c.Device, c.Baud)
			}
			return nil
		},
	}
	return command
}
