package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfslim/engine"
)

var (
	splitOutDir  string
	splitPages   int
	splitMaxSize float64
)

var splitCmd = &cobra.Command{
	Use:   "split <input.pdf>",
	Short: "Split a document into page-count or size-bounded chunks",
	Long: `Splits the document into standalone PDF files. With --pages each chunk
holds at most N pages; with --max-size each chunk's serialized size stays
under the given limit, using as few chunks as possible.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSplit(cmd.Context(), args[0])
	},
}

func init() {
	splitCmd.Flags().StringVarP(&splitOutDir, "outdir", "d", ".", "directory for chunk files")
	splitCmd.Flags().IntVar(&splitPages, "pages", 0, "maximum pages per chunk")
	splitCmd.Flags().Float64Var(&splitMaxSize, "max-size", 0, "maximum chunk size in MB")
	splitCmd.MarkFlagsMutuallyExclusive("pages", "max-size")
	splitCmd.MarkFlagsOneRequired("pages", "max-size")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(ctx context.Context, inFile string) error {
	data, err := readInput(inFile)
	if err != nil {
		return err
	}

	opts := engine.Options{Split: true}
	if splitPages > 0 {
		opts.SplitMode = engine.SplitByPages
		opts.PagesPerChunk = splitPages
		printInfo(fmt.Sprintf("Splitting %s into chunks of %d pages…", inFile, splitPages))
	} else {
		opts.SplitMode = engine.SplitBySize
		opts.MaxSizeMB = splitMaxSize
		printInfo(fmt.Sprintf("Splitting %s into chunks under %.1f MB…", inFile, splitMaxSize))
	}

	res, err := engine.New(engine.WithLogger(logger())).Process(ctx, data, opts, progressCallback())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(splitOutDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(inFile), filepath.Ext(inFile))
	for i, chunk := range res.Files {
		name := filepath.Join(splitOutDir, fmt.Sprintf("%s_part%02d.pdf", base, i+1))
		if err := writeOutput(name, chunk); err != nil {
			return err
		}
		printInfo(fmt.Sprintf("  %s (%s)", name, humanSize(int64(len(chunk)))))
	}
	printSuccess(fmt.Sprintf("%d pages → %d files", res.PagesTotal, len(res.Files)))
	return nil
}
