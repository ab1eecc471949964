package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stewartcelani/screen2scp/internal/message"
)

func newToggleCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:       "toggle monitor|autocopy",
		Short:     "Flip clipboard monitoring or path auto-copy",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{message.ToggleMonitor, message.ToggleAutoCopy},
		PreRunE:   func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := call(cmd.Context(), &message.Message{Type: message.TypeToggle, Target: args[0]})
			if err != nil {
				return err
			}
			state := "off"
			if resp.Enabled != nil && *resp.Enabled {
				state = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
			return nil
		},
	}
	addConfigFlag(cmd)

	return cmd
}
