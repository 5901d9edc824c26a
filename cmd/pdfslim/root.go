package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wudi/pdfslim/observability"
)

var (
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfslim",
	Short: "Shrink, strip and split PDF files",
	Long: `pdfslim rewrites PDF documents in place of their heaviest parts:
re-encodes embedded images at a lower JPEG quality, removes images while
keeping text intact, and splits documents into page-count or size-bounded
chunks.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log processing details to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func logger() observability.Logger {
	if !verbose {
		return observability.NopLogger{}
	}
	return observability.NewConsole(os.Stderr, zerolog.DebugLevel)
}
