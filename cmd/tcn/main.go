package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "tcnd.pid"

var daemonAddr string

var rootCmd = &cobra.Command{
	Use:   "tcn",
	Short: "TCN band office timesheets",
	Long: `tcn talks to the tcnd daemon to record staff hours, move timesheets
through submission and approval, and watch lifecycle events.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", defaultAddr(), "daemon address")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd)
	rootCmd.AddCommand(periodCmd)
	rootCmd.AddCommand(timesheetCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(staffCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
