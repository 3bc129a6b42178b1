// Command tradebot runs the automated trading agent and its reporting
// tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Secrets come from .env in development; missing file is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "tradebot",
		Short:         "Automated crypto trading agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newReportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
