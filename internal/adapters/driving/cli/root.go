// Package cli implements the bookwise command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/bookwise/internal/logger"
)

var (
	version = "dev"

	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "bookwise",
	Short: "Grounded question answering over book content",
	Long: `Bookwise ingests book content, indexes it for semantic retrieval and
answers questions grounded strictly on what the book says. Questions the
book cannot answer are refused instead of improvised.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.bookwise/config.toml)")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
