// Command plantscan serves the plant inspection API and scans leaf photos
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "plantscan",
		Short:   "Leaf health scanner for farmers",
		Long:    "plantscan finds discoloured leaf regions in camera frames and photos, and serves the scanning API.",
		Version: version,
	}
	rootCmd.AddCommand(newServeCmd(), newScanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
