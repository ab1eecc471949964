// screen2scp: upload clipboard screenshots to a server over SFTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stewartcelani/screen2scp/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "screen2scp",
		Short: "Upload clipboard screenshots over SFTP",
		Long: `screen2scp watches the clipboard (or a screenshot directory) and uploads
every new image as a JPEG to a remote directory over SFTP. Each image is
uploaded at most once; fingerprints of uploaded images are kept in a local
log so duplicates are skipped across restarts.

Run "screen2scp run" to start the daemon. Use "screen2scp list/delete/copy/
toggle/status" as CLI tools while it is running.

Config file search order (first found wins):
  /etc/screen2scp/screen2scp.toml
  $HOME/.config/screen2scp/screen2scp.toml
  path supplied via --config

All flags can be set via SCREEN2SCP_<FLAG> env vars or config-file keys.
See "screen2scp run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newDeleteCmd(),
		newCopyCmd(),
		newToggleCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "screen2scp %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
