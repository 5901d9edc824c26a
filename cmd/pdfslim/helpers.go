package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/wudi/pdfslim/engine"
)

func printInfo(msg string) {
	color.New(color.FgCyan).Fprintln(os.Stderr, msg)
}

func printSuccess(msg string) {
	color.New(color.FgGreen).Fprintf(os.Stderr, "✓ %s\n", msg)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// progressCallback renders the engine's percentage stream as a terminal bar.
// With --verbose the bar would interleave with log lines, so it is skipped.
func progressCallback() engine.ProgressFunc {
	if verbose {
		return nil
	}
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)
	return func(percent int, message string) {
		bar.Describe(message)
		_ = bar.Set(percent)
	}
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return nil
}

// defaultOutput derives "<name>.slim.pdf" next to the input.
func defaultOutput(in, suffix string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + suffix + ext
}

func reportSavings(res *engine.Result) {
	saved := res.Savings()
	if saved > 0 {
		pct := float64(saved) / float64(res.OriginalSize) * 100
		printSuccess(fmt.Sprintf("%s → %s (saved %s, %.1f%%)",
			humanSize(res.OriginalSize), humanSize(res.ProcessedSize), humanSize(saved), pct))
		return
	}
	printSuccess(fmt.Sprintf("%s → %s (nothing to shrink)",
		humanSize(res.OriginalSize), humanSize(res.ProcessedSize)))
}
