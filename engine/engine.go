// Package engine sequences the editing stages over one document: locate and
// recompress or remove images, rebuild the graph, optionally split, and
// serialize, reporting progress throughout.
package engine

import (
	"context"
	"fmt"

	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/observability"
	"github.com/wudi/pdfslim/optimize"
	"github.com/wudi/pdfslim/split"
)

// SplitMode selects how a document is partitioned.
type SplitMode string

const (
	SplitByPages SplitMode = "pages"
	SplitBySize  SplitMode = "size"
)

// Stage identifies a phase of a processing invocation.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageLoaded      Stage = "loaded"
	StageRemoving    Stage = "removing"
	StageCompressing Stage = "compressing"
	StageRebuilding  Stage = "rebuilding"
	StageSplitting   Stage = "splitting"
	StageSaving      Stage = "saving"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Options configures one processing invocation. Options are not mutated.
type Options struct {
	// CompressImages re-encodes embedded raster images at Quality (10-100).
	CompressImages bool
	Quality        int
	// TargetSizeMB, when positive, searches for the quality that brings the
	// whole document under the target. Implies CompressImages.
	TargetSizeMB float64

	// RemoveImages strips images while preserving text and vector content.
	RemoveImages bool

	// Split partitions the result into multiple output documents.
	Split         bool
	SplitMode     SplitMode
	PagesPerChunk int
	MaxSizeMB     float64

	// Workers bounds concurrent image encode work. Zero means NumCPU.
	Workers int
}

// Validate checks option consistency before any work starts.
func (o Options) Validate() error {
	if !o.CompressImages && !o.RemoveImages && !o.Split && o.TargetSizeMB <= 0 {
		return fmt.Errorf("no operation selected")
	}
	if o.CompressImages && o.TargetSizeMB <= 0 {
		if o.Quality < 10 || o.Quality > 100 {
			return fmt.Errorf("quality must be between 10 and 100, got %d", o.Quality)
		}
	}
	if o.TargetSizeMB < 0 {
		return fmt.Errorf("target size must be positive")
	}
	if o.TargetSizeMB > 0 && o.Split {
		return fmt.Errorf("compressing to a target size and splitting cannot be combined")
	}
	if o.TargetSizeMB > 0 && o.RemoveImages {
		return fmt.Errorf("compressing to a target size and removing images cannot be combined")
	}
	if o.Split {
		switch o.SplitMode {
		case SplitByPages:
			if o.PagesPerChunk < 1 {
				return fmt.Errorf("pages per chunk must be at least 1, got %d", o.PagesPerChunk)
			}
		case SplitBySize:
			if o.MaxSizeMB <= 0 {
				return fmt.Errorf("maximum chunk size must be positive, got %v", o.MaxSizeMB)
			}
		default:
			return fmt.Errorf("unknown split mode %q", o.SplitMode)
		}
	}
	return nil
}

// Result carries the output of a processing invocation: ProcessedFile for
// single-output operations, Files for splits.
type Result struct {
	ProcessedFile []byte
	Files         [][]byte

	OriginalSize   int64
	ProcessedSize  int64
	PagesTotal     int
	ImagesTotal    int
	ImagesReplaced int
	ImagesRemoved  int
}

// Savings returns the byte reduction for single-output operations.
func (r *Result) Savings() int64 { return r.OriginalSize - r.ProcessedSize }

// ProgressFunc receives a monotonically non-decreasing percentage and a
// stage message.
type ProgressFunc func(percent int, message string)

// Engine orchestrates processing invocations. Safe for reuse; each
// invocation owns its document exclusively.
type Engine struct {
	logger observability.Logger
	tracer observability.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer attaches a tracer.
func WithTracer(t observability.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New returns an engine with nop observability by default.
func New(opts ...Option) *Engine {
	e := &Engine{logger: observability.NopLogger{}, tracer: observability.NopTracer()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// tracker clamps progress to a monotonically non-decreasing percentage.
type tracker struct {
	fn   ProgressFunc
	last int
}

func (t *tracker) report(percent int, message string) {
	if percent < t.last {
		percent = t.last
	}
	if percent > 100 {
		percent = 100
	}
	t.last = percent
	if t.fn != nil {
		t.fn(percent, message)
	}
}

// sub maps a done/total counter into the [from,to] percentage band.
func (t *tracker) sub(from, to int, message string) func(done, total int) {
	return func(done, total int) {
		if total <= 0 {
			return
		}
		t.report(from+(to-from)*done/total, message)
	}
}

// Stage bands. Save always gets the tail of the range so the caller's UI
// never appears to finish early and then stall on serialization.
const (
	pctLoaded   = 8
	pctEdited   = 60
	pctRebuilt  = 72
	pctSplit    = 88
	pctSaveFrom = 88
)

// Process runs the selected operations over data and returns the result.
// Errors carry a single user-facing message; per-object problems are logged
// and skipped instead.
func (e *Engine) Process(ctx context.Context, data []byte, opts Options, progress ProgressFunc) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "engine.process")
	defer span.Finish()

	tr := &tracker{fn: progress}
	stage := StageIdle
	fail := func(err error) (*Result, error) {
		failedAt := stage
		stage = StageFailed
		span.SetTag("stage", string(failedAt))
		span.SetError(err)
		e.logger.Error("processing failed",
			observability.String("stage", string(failedAt)),
			observability.Error("err", err))
		return nil, err
	}

	tr.report(0, "Loading document")
	_, loadSpan := e.tracer.StartSpan(ctx, observability.MetricLoadTime)
	doc, err := document.Load(data, document.WithLogger(e.logger))
	loadSpan.Finish()
	if err != nil {
		return fail(err)
	}
	stage = StageLoaded
	span.SetTag(observability.MetricPageCount, doc.PageCount())
	tr.report(pctLoaded, "Document loaded")

	result := &Result{
		OriginalSize: int64(len(data)),
		PagesTotal:   doc.PageCount(),
	}

	if opts.TargetSizeMB > 0 {
		res, err := e.processToTarget(ctx, doc, opts, tr, result)
		if err != nil {
			return fail(err)
		}
		span.SetTag(observability.MetricImagesLocated, res.ImagesTotal)
		span.SetTag(observability.MetricImagesReplaced, res.ImagesReplaced)
		span.SetTag(observability.MetricBytesSaved, res.Savings())
		return res, nil
	}

	// Removal first, then compression of whatever images remain.
	editFrom, editTo := pctLoaded, pctEdited
	if opts.RemoveImages && opts.CompressImages {
		editTo = (pctLoaded + pctEdited) / 2
	}
	if opts.RemoveImages {
		stage = StageRemoving
		tr.report(editFrom, "Removing images")
		stats, err := optimize.NewRemover(e.logger).Remove(ctx, doc, tr.sub(editFrom, editTo, "Removing images"))
		if err != nil {
			return fail(err)
		}
		result.ImagesRemoved = stats.ImagesRemoved
		span.SetTag(observability.MetricStreamsRewritten, stats.StreamsRewritten)
		editFrom, editTo = editTo, pctEdited
	}
	if opts.CompressImages {
		stage = StageCompressing
		tr.report(editFrom, "Compressing images")
		rc := optimize.NewRecompressor(optimize.Config{
			Quality: opts.Quality,
			Workers: opts.Workers,
			Logger:  e.logger,
		})
		stats, err := rc.Recompress(ctx, doc, tr.sub(editFrom, editTo, "Compressing images"))
		if err != nil {
			return fail(err)
		}
		result.ImagesTotal = stats.Located
		result.ImagesReplaced = stats.Replaced
		span.SetTag(observability.MetricImagesLocated, stats.Located)
		span.SetTag(observability.MetricImagesReplaced, stats.Replaced)
	}

	stage = StageRebuilding
	tr.report(pctEdited, "Rebuilding document")
	_, rebuildSpan := e.tracer.StartSpan(ctx, observability.MetricRebuildTime)
	err = doc.Rebuild()
	rebuildSpan.Finish()
	if err != nil {
		return fail(err)
	}
	tr.report(pctRebuilt, "Document rebuilt")

	if opts.Split {
		stage = StageSplitting
		files, err := e.split(doc, opts, tr)
		if err != nil {
			return fail(err)
		}
		stage = StageSaving
		tr.report(pctSaveFrom, "Finalizing output files")
		result.Files = files
		for _, f := range files {
			result.ProcessedSize += int64(len(f))
		}
		span.SetTag(observability.MetricSplitChunks, len(files))
		stage = StageDone
		tr.report(100, "Done")
		return result, nil
	}

	stage = StageSaving
	tr.report(pctSaveFrom, "Saving document")
	_, saveSpan := e.tracer.StartSpan(ctx, observability.MetricSaveTime)
	out, err := doc.Save(document.DefaultSaveOptions())
	saveSpan.Finish()
	if err != nil {
		return fail(fmt.Errorf("saving document: %w", err))
	}
	result.ProcessedFile = out
	result.ProcessedSize = int64(len(out))
	span.SetTag(observability.MetricBytesSaved, result.Savings())
	stage = StageDone
	tr.report(100, "Done")

	e.logger.Info("processing finished",
		observability.Int64("originalBytes", result.OriginalSize),
		observability.Int64("processedBytes", result.ProcessedSize),
		observability.Int("imagesReplaced", result.ImagesReplaced))
	return result, nil
}

func (e *Engine) split(doc *document.Document, opts Options, tr *tracker) ([][]byte, error) {
	sp := split.New(e.logger)
	prog := tr.sub(pctRebuilt, pctSplit, "Splitting document")
	switch opts.SplitMode {
	case SplitByPages:
		return sp.ByPages(doc, opts.PagesPerChunk, prog)
	case SplitBySize:
		limit := int64(opts.MaxSizeMB * 1024 * 1024)
		return sp.BySize(doc, limit, prog)
	}
	return nil, fmt.Errorf("unknown split mode %q", opts.SplitMode)
}
