package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tether/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔╦╗┌─┐┌┬┐┬ ┬┌─┐┬─┐
   ║ ├┤  │ ├─┤├┤ ├┬┘
   ╩ └─┘ ┴ ┴ ┴└─┘┴└─
`

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tether",
		Short: "Server-held UI trees, mirrored to the browser",
		Long: `Tether keeps the UI tree on the server and mirrors it into the
browser over a WebSocket.

Each tick the server diffs the tree and pushes markup for changed
nodes. Browser events call named handlers on the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		initCmd(),
		versionCmd(),
	)
	return root
}

// printBanner prints the tether banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
