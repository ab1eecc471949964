package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stewartcelani/screen2scp/internal/ipc"
	"github.com/stewartcelani/screen2scp/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state",
		Long: `Displays the state of the running screen2scp daemon: whether monitoring
and auto-copy are on, what the pipeline is doing, and how many uploads and
logged fingerprints it holds.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	resp, err := call(cmd.Context(), &message.Message{Type: message.TypeStatus})
	if err != nil {
		return err
	}
	if resp.Status == nil {
		return fmt.Errorf("daemon returned no status")
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), resp.Status)
	}
	printStatus(cmd.OutOrStdout(), resp.Status)
	return nil
}

func printStatus(out io.Writer, s *message.Status) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", s.Version)
	fmt.Fprintf(w, "Socket:\t%s\n", ipc.SocketPath())
	fmt.Fprintf(w, "Source:\t%s\n", s.Source)
	fmt.Fprintf(w, "Remote:\t%s\n", s.Remote)
	fmt.Fprintf(w, "Started:\t%s\n", humanize.Time(s.StartedAt))
	fmt.Fprintf(w, "Monitoring:\t%s\n", onOff(s.Monitoring))
	fmt.Fprintf(w, "Auto-copy:\t%s\n", onOff(s.AutoCopy))
	fmt.Fprintf(w, "Stage:\t%s\n", s.Stage)
	fmt.Fprintf(w, "Uploads:\t%d\n", s.Uploads)
	fmt.Fprintf(w, "Logged fingerprints:\t%s\n", humanize.Comma(int64(s.Logged)))
	if s.Dropped > 0 {
		fmt.Fprintf(w, "Dropped events:\t%d\n", s.Dropped)
	}
	_ = w.Flush()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
