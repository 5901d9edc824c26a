package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfslim/engine"
)

var (
	compressOutput  string
	compressQuality int
	compressTarget  float64
	compressWorkers int
)

var compressCmd = &cobra.Command{
	Use:   "compress <input.pdf>",
	Short: "Re-encode embedded images at a lower JPEG quality",
	Long: `Re-encodes every embedded raster image as JPEG at the requested quality
and keeps the smaller of the two encodings. With --target-size the quality is
chosen automatically to bring the file under the given size when possible.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args[0])
	},
}

func init() {
	compressCmd.Flags().StringVarP(&compressOutput, "output", "o", "", "output file (default: <input>.slim.pdf)")
	compressCmd.Flags().IntVarP(&compressQuality, "quality", "q", 70, "JPEG quality, 10-100")
	compressCmd.Flags().Float64Var(&compressTarget, "target-size", 0, "target size in MB; overrides --quality")
	compressCmd.Flags().IntVar(&compressWorkers, "workers", 0, "parallel encoders (default: GOMAXPROCS)")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(ctx context.Context, inFile string) error {
	data, err := readInput(inFile)
	if err != nil {
		return err
	}
	printInfo(fmt.Sprintf("Compressing %s (%s)…", inFile, humanSize(int64(len(data)))))

	opts := engine.Options{
		CompressImages: compressTarget <= 0,
		Quality:        compressQuality,
		TargetSizeMB:   compressTarget,
		Workers:        compressWorkers,
	}
	res, err := engine.New(engine.WithLogger(logger())).Process(ctx, data, opts, progressCallback())
	if err != nil {
		return err
	}

	outFile := compressOutput
	if outFile == "" {
		outFile = defaultOutput(inFile, ".slim")
	}
	if err := writeOutput(outFile, res.ProcessedFile); err != nil {
		return err
	}
	reportSavings(res)
	if res.ImagesTotal > 0 {
		printInfo(fmt.Sprintf("%d of %d images re-encoded → %s", res.ImagesReplaced, res.ImagesTotal, outFile))
	}
	return nil
}
