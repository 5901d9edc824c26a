package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/optimize"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.pdf>",
	Short: "Show page count and the embedded image inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(inFile string) error {
	data, err := readInput(inFile)
	if err != nil {
		return err
	}
	doc, err := document.Load(data, document.WithLogger(logger()))
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s, %d pages\n", inFile, humanSize(doc.SourceSize()), doc.PageCount())

	infos, err := optimize.NewLocator(logger()).LocateAll(doc)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no embedded images")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tNAME\tSIZE\tDIMENSIONS\tCOLORSPACE\tFILTERS")
	var total int64
	for _, img := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%dx%d\t%s\t%s\n",
			img.Page, img.Name, humanSize(img.EncodedLength),
			img.Width, img.Height, img.ColorSpace, strings.Join(img.Filters, "+"))
		total += img.EncodedLength
	}
	w.Flush()
	fmt.Printf("%d images, %s encoded (%.1f%% of file)\n",
		len(infos), humanSize(total), float64(total)/float64(doc.SourceSize())*100)
	return nil
}
