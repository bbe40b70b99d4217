// Command proctorsim replays scripted exam attempts against the monitor on a
// simulated browser platform and reports whether each scenario held.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "proctorsim",
	Short:        "Replay exam-integrity scenarios against the monitor",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
