package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var apiBaseURL string

func main() {
	root := &cobra.Command{
		Use:           "rulesctl",
		Short:         "Operator CLI for the hockey rules retrieval service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiBaseURL, "api", "http://localhost:8080", "base URL of the rules API")

	root.AddCommand(newQueryCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newJurisdictionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
