package engine

import (
	"context"
	"fmt"

	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/observability"
	"github.com/wudi/pdfslim/optimize"
)

// targetIterations bounds the quality search. Six halvings of the [10,90]
// band cover roughly 64 effective quality steps.
const targetIterations = 6

// processToTarget searches for the highest quality whose full recompression
// brings the serialized document under the target size. Every candidate runs
// against an independent clone of the source graph and is judged by its
// actual serialized byte length.
func (e *Engine) processToTarget(ctx context.Context, doc *document.Document, opts Options, tr *tracker, result *Result) (*Result, error) {
	target := int64(opts.TargetSizeMB * 1024 * 1024)

	// Already small enough: serialize as-is.
	if doc.SourceSize() <= target {
		tr.report(pctSaveFrom, "Saving document")
		out, err := doc.Save(document.DefaultSaveOptions())
		if err != nil {
			return nil, fmt.Errorf("saving document: %w", err)
		}
		result.ProcessedFile = out
		result.ProcessedSize = int64(len(out))
		tr.report(100, "Done")
		return result, nil
	}

	lo, hi := 10, 90
	var best []byte     // candidate at the highest quality meeting the target
	var fallback []byte // closest candidate above the target
	var fallbackSize int64 = -1
	var bestStats, fallbackStats optimize.Stats

	for iter := 0; iter < targetIterations && lo <= hi; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		quality := (lo + hi) / 2
		tr.report(pctLoaded+(pctSaveFrom-pctLoaded)*iter/targetIterations,
			fmt.Sprintf("Trying quality %d%%", quality))

		cand, err := doc.Clone()
		if err != nil {
			return nil, fmt.Errorf("preparing candidate document: %w", err)
		}
		rc := optimize.NewRecompressor(optimize.Config{
			Quality: quality,
			Workers: opts.Workers,
			Logger:  e.logger,
		})
		stats, err := rc.Recompress(ctx, cand, nil)
		if err != nil {
			return nil, err
		}
		if err := cand.Rebuild(); err != nil {
			return nil, err
		}
		data, err := cand.Save(document.DefaultSaveOptions())
		if err != nil {
			return nil, fmt.Errorf("serializing candidate: %w", err)
		}

		size := int64(len(data))
		e.logger.Debug("target search candidate",
			observability.Int("quality", quality),
			observability.Int64("bytes", size),
			observability.Int64("target", target))

		if size <= target {
			best = data
			bestStats = stats
			lo = quality + 1
		} else {
			if fallbackSize < 0 || size < fallbackSize {
				fallback = data
				fallbackSize = size
				fallbackStats = stats
			}
			hi = quality - 1
		}
	}

	out := best
	if out == nil {
		bestStats = fallbackStats
		// Nothing met the target; hand back the closest result from above
		// rather than failing outright.
		out = fallback
		e.logger.Warn("target size not reachable, returning closest candidate",
			observability.Int64("target", target),
			observability.Int64("achieved", fallbackSize))
	}

	tr.report(pctSaveFrom, "Saving document")
	result.ProcessedFile = out
	result.ProcessedSize = int64(len(out))
	result.ImagesTotal = bestStats.Located
	result.ImagesReplaced = bestStats.Replaced
	tr.report(100, "Done")
	return result, nil
}
