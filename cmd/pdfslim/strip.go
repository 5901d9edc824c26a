package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfslim/engine"
)

var stripOutput string

var stripCmd = &cobra.Command{
	Use:   "strip-images <input.pdf>",
	Short: "Remove all embedded images, keeping text and vector content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStrip(cmd.Context(), args[0])
	},
}

func init() {
	stripCmd.Flags().StringVarP(&stripOutput, "output", "o", "", "output file (default: <input>.noimages.pdf)")
	rootCmd.AddCommand(stripCmd)
}

func runStrip(ctx context.Context, inFile string) error {
	data, err := readInput(inFile)
	if err != nil {
		return err
	}
	printInfo(fmt.Sprintf("Stripping images from %s (%s)…", inFile, humanSize(int64(len(data)))))

	res, err := engine.New(engine.WithLogger(logger())).Process(ctx, data, engine.Options{
		RemoveImages: true,
	}, progressCallback())
	if err != nil {
		return err
	}

	outFile := stripOutput
	if outFile == "" {
		outFile = defaultOutput(inFile, ".noimages")
	}
	if err := writeOutput(outFile, res.ProcessedFile); err != nil {
		return err
	}
	reportSavings(res)
	printInfo(fmt.Sprintf("%d images removed → %s", res.ImagesRemoved, outFile))
	return nil
}
