package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RudolfRTC/CCS-Charger/internal/app"
)

// newResetCommand builds the "reset" command: open the channel long
// enough to send one reset-module frame, then exit.
func newResetCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "Send a single reset-module frame and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			if err := a.ResetAction(); err != nil {
				return err
			}
			fmt.Println("reset frame sent")
			return nil
		},
	}
	return command
}
