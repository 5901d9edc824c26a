package optimize

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfslim/contentstream"
	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/observability"
)

// RemovalStats reports the outcome of an image removal pass.
type RemovalStats struct {
	ImagesRemoved    int
	StreamsRewritten int
}

// Remover deletes image XObjects and the operators that paint them, leaving
// text and vector content untouched.
type Remover struct {
	logger observability.Logger
}

// NewRemover returns a remover. logger may be nil.
func NewRemover(logger observability.Logger) *Remover {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Remover{logger: logger}
}

// Remove strips images from every page: content streams lose their image
// painting operators and inline image blocks, and image entries disappear
// from the resource dictionaries. Form XObjects are edited recursively. A
// page whose content stream cannot be read is left unmodified and processing
// continues. Dropped objects become orphans; run document.Rebuild afterwards.
func (r *Remover) Remove(ctx context.Context, doc *document.Document, progress ProgressFunc) (RemovalStats, error) {
	var stats RemovalStats
	total := doc.PageCount()
	editedForms := make(map[int]bool)

	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := r.removeFromPage(doc, pageNr, editedForms, &stats); err != nil {
			r.logger.Warn("leaving page unmodified",
				observability.Int("page", pageNr), observability.Error("err", err))
		}
		if progress != nil {
			progress(pageNr, total)
		}
	}

	r.logger.Info("image removal finished",
		observability.Int("imagesRemoved", stats.ImagesRemoved),
		observability.Int("streamsRewritten", stats.StreamsRewritten))
	return stats, nil
}

func (r *Remover) removeFromPage(doc *document.Document, pageNr int, editedForms map[int]bool, stats *RemovalStats) error {
	// A nil resource dictionary still gets its content edited: inline
	// BI…ID…EI images live in the stream alone.
	res, err := doc.PageResources(pageNr)
	if err != nil {
		return err
	}

	streams, err := doc.PageContents(pageNr)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	// Decode everything up front; a page is edited all-or-nothing so a decode
	// failure cannot leave it half rewritten.
	for _, cs := range streams {
		if cs.Stream.Content == nil {
			if err := cs.Stream.Decode(); err != nil {
				return fmt.Errorf("decoding content: %w", err)
			}
		}
	}

	return r.removeFromResources(doc, pageNr, res, streams, editedForms, stats)
}

// removeFromResources edits the given content streams against one resource
// dictionary, then recurses into any form XObjects it holds.
func (r *Remover) removeFromResources(doc *document.Document, pageNr int, res types.Dict, streams []document.ContentStream, editedForms map[int]bool, stats *RemovalStats) error {
	mctx := doc.Context()

	imageNames := make(map[string]bool)
	var forms []document.ContentStream
	formNames := make(map[int]string)

	var xobjs types.Dict
	if xobjObj, found := res.Find("XObject"); found {
		xobjs, _ = mctx.DereferenceDict(xobjObj)
	}
	for name, entry := range xobjs {
		ref, ok := entry.(types.IndirectRef)
		if !ok {
			continue
		}
		sd, _, err := mctx.DereferenceStreamDict(entry)
		if err != nil || sd == nil {
			r.logger.Warn("skipping malformed XObject entry",
				observability.Int("page", pageNr),
				observability.String("name", name),
				observability.Error("err", err))
			continue
		}
		subtype := sd.Dict.NameEntry("Subtype")
		if subtype == nil {
			continue
		}
		switch *subtype {
		case "Image":
			imageNames[name] = true
		case "Form":
			objNr := ref.ObjectNumber.Value()
			forms = append(forms, document.ContentStream{
				ObjNr:  objNr,
				GenNr:  ref.GenerationNumber.Value(),
				Stream: sd,
			})
			formNames[objNr] = name
		}
	}

	for _, cs := range streams {
		edited, n := contentstream.RemoveImageOps(cs.Stream.Content, imageNames)
		if n == 0 {
			continue
		}
		if err := writeContent(cs.Stream, edited); err != nil {
			return fmt.Errorf("re-encoding content: %w", err)
		}
		// Dereferencing handed out a copy; store the rewrite.
		if err := doc.UpdateStream(cs.ObjNr, cs.GenNr, cs.Stream); err != nil {
			return fmt.Errorf("storing rewritten content: %w", err)
		}
		stats.StreamsRewritten++
	}

	for name := range imageNames {
		delete(xobjs, name)
		stats.ImagesRemoved++
	}

	for _, form := range forms {
		if editedForms[form.ObjNr] {
			continue
		}
		editedForms[form.ObjNr] = true
		if err := r.removeFromForm(doc, pageNr, form, editedForms, stats); err != nil {
			r.logger.Warn("leaving form unmodified",
				observability.Int("page", pageNr),
				observability.String("name", formNames[form.ObjNr]),
				observability.Error("err", err))
		}
	}
	return nil
}

func (r *Remover) removeFromForm(doc *document.Document, pageNr int, form document.ContentStream, editedForms map[int]bool, stats *RemovalStats) error {
	mctx := doc.Context()

	if form.Stream.Content == nil {
		if err := form.Stream.Decode(); err != nil {
			return fmt.Errorf("decoding form content: %w", err)
		}
	}

	var formRes types.Dict
	if resObj, found := form.Stream.Dict.Find("Resources"); found {
		formRes, _ = mctx.DereferenceDict(resObj)
	}
	return r.removeFromResources(doc, pageNr, formRes, []document.ContentStream{form}, editedForms, stats)
}

// writeContent replaces a stream's payload and re-encodes it with Flate.
func writeContent(sd *types.StreamDict, content []byte) error {
	sd.Content = content
	sd.FilterPipeline = []types.PDFFilter{{Name: "FlateDecode"}}
	sd.Dict["Filter"] = types.Name("FlateDecode")
	delete(sd.Dict, "DecodeParms")
	if err := sd.Encode(); err != nil {
		return err
	}
	length := int64(len(sd.Raw))
	sd.StreamLength = &length
	sd.Dict["Length"] = types.Integer(length)
	return nil
}
