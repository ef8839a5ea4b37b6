package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "etracker",
	Short: "Track expenses against a remote etracker server",
	Long: `etracker is a client for the etracker expense server. It keeps a
session cookie across invocations, mirrors your categories and expenses
locally for display, and shows per-category spending totals.`,
	SilenceUsage: true,
}
