package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stewartcelani/screen2scp/internal/message"
)

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List uploads from this session, newest first",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runList(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output raw JSON")
	f.Bool("thumbnails", false, "include base64 PNG thumbnails in JSON output")
	addConfigFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, v *viper.Viper) error {
	resp, err := call(cmd.Context(), &message.Message{
		Type:       message.TypeList,
		Thumbnails: v.GetBool("thumbnails"),
	})
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		recs := resp.Records
		if recs == nil {
			recs = []message.Record{}
		}
		return printJSON(cmd.OutOrStdout(), recs)
	}
	printRecords(cmd.OutOrStdout(), resp.Records)
	return nil
}
