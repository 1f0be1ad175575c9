package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blelink",
		Short: "Drive a single BLE peripheral through its connection lifecycle",
		Long: `blelink selects one Bluetooth Low Energy peripheral, retrieves its services
and keeps track of the link until it is disconnected:

- connect: request a device, stay connected until Ctrl+C, then disconnect
- shell:   send lifecycle triggers interactively
- states:  print the lifecycle state table
- log:     print a recorded transition log`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		// Silence Cobra's "Error:" prefix - main() prints clean errors
		SilenceErrors: true,
	}

	root.AddCommand(newConnectCmd())
	root.AddCommand(newShellCmd())
	root.AddCommand(newStatesCmd())
	root.AddCommand(newLogCmd())

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("verbose", false, "Shortcut for --log-level debug")
	flags.StringP("output", "o", "", "Output format (table, json)")
	flags.Bool("no-color", false, "Disable colored output")

	return root
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
