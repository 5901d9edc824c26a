// Package document adapts the pdfcpu object model to the editing engine. It is
// the only place that loads, serializes and rebuilds whole documents; graph
// surgery on individual objects happens in the optimize package against the
// context exposed here.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfslim/observability"
)

var (
	// ErrEmpty is returned when the input contains no bytes.
	ErrEmpty = errors.New("file is empty")
	// ErrNotPDF is returned when the input cannot be parsed as a PDF.
	ErrNotPDF = errors.New("file is not a valid PDF document")
	// ErrNoPages is returned for documents whose page tree is empty.
	ErrNoPages = errors.New("document contains no pages")
)

// Document wraps a parsed PDF graph together with the serialized bytes it was
// read from. The graph may be mutated in place; the retained bytes reflect the
// last Load, Save or Rebuild and back page-range serialization and cloning.
type Document struct {
	ctx    *model.Context
	source []byte
	conf   *model.Configuration
	logger observability.Logger
}

// Option configures a Document at load time.
type Option func(*Document)

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(l observability.Logger) Option {
	return func(d *Document) { d.logger = l }
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.ValidateLinks = false
	conf.Offline = true
	return conf
}

// Load parses data into a mutable document graph.
func Load(data []byte, opts ...Option) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	d := &Document{
		source: data,
		conf:   newConfiguration(),
		logger: observability.NopLogger{},
	}
	for _, o := range opts {
		o(d)
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), d.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if ctx.PageCount == 0 {
		return nil, ErrNoPages
	}
	d.ctx = ctx

	d.logger.Debug("document loaded",
		observability.Int("pages", ctx.PageCount),
		observability.Int64("bytes", int64(len(data))))
	return d, nil
}

// SaveOptions controls serialization.
type SaveOptions struct {
	ObjectStreams bool
	XRefStreams   bool
}

// DefaultSaveOptions matches the options used for all final output.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{ObjectStreams: true, XRefStreams: true}
}

// Save serializes the current graph. pdfcpu's writer consumes the context it
// serializes, so the document re-reads its own output afterwards; repeated
// saves, page-range writes and clones all stay consistent.
func (d *Document) Save(opts SaveOptions) ([]byte, error) {
	d.conf.WriteObjectStream = opts.ObjectStreams
	d.conf.WriteXRefStream = opts.XRefStreams

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	data := buf.Bytes()

	ctx, err := d.reload(data)
	if err != nil {
		return nil, fmt.Errorf("reloading serialized document: %w", err)
	}
	d.ctx = ctx
	d.source = data
	return data, nil
}

// reload parses and validates data into a fresh context without touching the
// document.
func (d *Document) reload(data []byte) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), d.conf)
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// PageCount returns the number of pages in the page tree.
func (d *Document) PageCount() int { return d.ctx.PageCount }

// SourceSize returns the byte length of the last serialized form.
func (d *Document) SourceSize() int64 { return int64(len(d.source)) }

// Source returns the bytes of the last Load or Rebuild.
func (d *Document) Source() []byte { return d.source }

// Context exposes the underlying pdfcpu context for graph-level edits.
func (d *Document) Context() *model.Context { return d.ctx }

// PageResources returns the effective resource dictionary of a 1-based page,
// including inherited resources. May be nil for pages without resources.
func (d *Document) PageResources(pageNr int) (types.Dict, error) {
	_, _, attrs, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNr, err)
	}
	if attrs == nil {
		return nil, nil
	}
	return attrs.Resources, nil
}

// ContentStream is a content stream together with its cross-reference
// location. Dereferencing hands out a copy of the stored stream dict, so a
// mutated stream only takes effect once written back via UpdateStream.
type ContentStream struct {
	ObjNr  int
	GenNr  int
	Stream *types.StreamDict
}

// PageContents resolves the content stream objects of a 1-based page. A page
// may carry a single stream or an array of streams; both are returned in
// order. Pages without contents yield an empty slice.
func (d *Document) PageContents(pageNr int) ([]ContentStream, error) {
	pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNr, err)
	}
	obj, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}
	return d.resolveContents(obj)
}

func (d *Document) resolveContents(obj types.Object) ([]ContentStream, error) {
	if arr, ok := obj.(types.Array); ok {
		var out []ContentStream
		for _, entry := range arr {
			cs, err := d.resolveContents(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, cs...)
		}
		return out, nil
	}
	ref, ok := obj.(types.IndirectRef)
	if !ok {
		return nil, fmt.Errorf("content stream is not an indirect reference")
	}
	resolved, err := d.ctx.Dereference(ref)
	if err != nil {
		return nil, err
	}
	if arr, ok := resolved.(types.Array); ok {
		return d.resolveContents(arr)
	}
	sd, _, err := d.ctx.DereferenceStreamDict(ref)
	if err != nil || sd == nil {
		return nil, fmt.Errorf("content stream %d: %v", ref.ObjectNumber.Value(), err)
	}
	return []ContentStream{{
		ObjNr:  ref.ObjectNumber.Value(),
		GenNr:  ref.GenerationNumber.Value(),
		Stream: sd,
	}}, nil
}

// UpdateStream writes a mutated stream dict back into the cross-reference
// table.
func (d *Document) UpdateStream(objNr, genNr int, sd *types.StreamDict) error {
	entry, found := d.ctx.FindTableEntry(objNr, genNr)
	if !found || entry == nil {
		return fmt.Errorf("object %d %d not found", objNr, genNr)
	}
	entry.Object = *sd
	return nil
}

// WritePageRange serializes a fresh document holding the 1-based, inclusive
// page range [from,to] into w, using the same save options as final output.
// The source graph is never mutated; pages are copied, not referenced. The
// range is taken from the bytes of the last Load or Rebuild, so callers that
// mutated the graph must Rebuild first.
func (d *Document) WritePageRange(w io.Writer, from, to int) error {
	if from < 1 || to < from || to > d.ctx.PageCount {
		return fmt.Errorf("invalid page range %d-%d of %d", from, to, d.ctx.PageCount)
	}
	sel := []string{fmt.Sprintf("%d-%d", from, to)}
	if err := api.Trim(bytes.NewReader(d.source), w, sel, d.conf); err != nil {
		return fmt.Errorf("extract pages %d-%d: %w", from, to, err)
	}
	return nil
}

// Clone re-parses the retained source bytes into an independent document.
// Mutations on the clone never affect the receiver.
func (d *Document) Clone() (*Document, error) {
	return Load(d.source, WithLogger(d.logger))
}
