// Package cmd provides the command-line interface of pagingsim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagingsim",
	Short: "pagingsim simulates demand-paged virtual memory.",
	Long: `pagingsim simulates the virtual memory of a teaching kernel: ` +
		`lazily loaded pages, a frame table with clock eviction, swap, ` +
		`memory-mapped files, stack growth and fork. It runs random ` +
		`workloads that check every value they read back.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
