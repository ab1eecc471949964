package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stewartcelani/screen2scp/internal/message"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy [ID|last]",
		Short: "Copy an upload's path, contents or image to the clipboard",
		Long: `Puts information about an upload on the daemon host's clipboard.

By default the remote path of the newest upload is copied. Paths containing
spaces are quoted.

  --all     every remote path from this session, newest first, space separated
  --base64  the uploaded file, base64 encoded
  --image   the uploaded image itself`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runCopy(cmd, v, args) },
	}

	f := cmd.Flags()
	f.Bool("all", false, "copy every remote path")
	f.Bool("base64", false, "copy the file contents as base64")
	f.Bool("image", false, "copy the image")
	cmd.MarkFlagsMutuallyExclusive("all", "base64", "image")
	addConfigFlag(cmd)

	return cmd
}

func copyMode(v *viper.Viper) message.CopyMode {
	switch {
	case v.GetBool("all"):
		return message.CopyAll
	case v.GetBool("base64"):
		return message.CopyBase64
	case v.GetBool("image"):
		return message.CopyImage
	default:
		return message.CopyPath
	}
}

func runCopy(cmd *cobra.Command, v *viper.Viper, args []string) error {
	req := &message.Message{Type: message.TypeCopy, Mode: copyMode(v)}
	if len(args) == 1 {
		if req.Mode == message.CopyAll {
			return fmt.Errorf("--all takes no ID")
		}
		req.ID = args[0]
	}

	resp, err := call(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch req.Mode {
	case message.CopyPath, message.CopyAll:
		fmt.Fprintf(out, "Copied: %s\n", resp.Text)
	case message.CopyBase64:
		fmt.Fprintf(out, "Copied %s of base64 for %s\n", resp.Text, filename(resp))
	case message.CopyImage:
		fmt.Fprintf(out, "Copied image %s\n", filename(resp))
	}
	return nil
}

func filename(resp *message.Message) string {
	if len(resp.Records) == 0 {
		return "upload"
	}
	return resp.Records[0].Filename
}
