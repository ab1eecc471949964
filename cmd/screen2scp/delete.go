package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stewartcelani/screen2scp/internal/message"
)

func newDeleteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "delete [ID|last]",
		Aliases: []string{"rm"},
		Short:   "Delete an upload from the server",
		Long: `Deletes an uploaded screenshot from the server and forgets its
fingerprint, so the same image can be uploaded again later.

Without an argument the newest upload is deleted. With --all every upload from
this session is deleted; uploads that fail to delete are kept in the list.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runDelete(cmd, v, args) },
	}

	f := cmd.Flags()
	f.Bool("all", false, "delete every upload from this session")
	addConfigFlag(cmd)

	return cmd
}

func runDelete(cmd *cobra.Command, v *viper.Viper, args []string) error {
	out := cmd.OutOrStdout()

	if v.GetBool("all") {
		if len(args) > 0 {
			return fmt.Errorf("--all takes no ID")
		}
		resp, err := call(cmd.Context(), &message.Message{Type: message.TypeDeleteAll})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d, failed %d\n", resp.Deleted, resp.Failed)
		if resp.Failed > 0 {
			return fmt.Errorf("%d screenshots could not be deleted", resp.Failed)
		}
		return nil
	}

	req := &message.Message{Type: message.TypeDelete}
	if len(args) == 1 {
		req.ID = args[0]
	}
	resp, err := call(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, r := range resp.Records {
		fmt.Fprintf(out, "Deleted %s\n", r.RemotePath)
	}
	return nil
}
