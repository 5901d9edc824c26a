// Package optimize edits the image content of a parsed document: locating
// image XObjects, recompressing them in place, or removing them entirely while
// keeping text and vector content intact.
package optimize

import (
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/observability"
)

// ImageInfo describes one image XObject occurrence reachable from a page's
// resource dictionary, with enough metadata to decide whether recompression
// is worth attempting.
type ImageInfo struct {
	Page             int
	Name             string
	ObjNr            int // 0 for direct objects
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	Filters          []string // full filter chain, outermost first
	EncodedLength    int64
	HasSoftMask      bool
	IsMask           bool

	owner types.Dict // XObject dict holding Name
	sd    *types.StreamDict
}

// Locator enumerates image XObjects, recursing into Form XObjects.
type Locator struct {
	logger observability.Logger
}

// NewLocator returns a locator. logger may be nil.
func NewLocator(logger observability.Logger) *Locator {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Locator{logger: logger}
}

// Locate returns every image XObject reachable from the 1-based page's
// resource dictionary, including images nested inside forms. The walk never
// mutates the graph; malformed entries are logged and skipped.
func (l *Locator) Locate(doc *document.Document, pageNr int) ([]ImageInfo, error) {
	res, err := doc.PageResources(pageNr)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	seen := make(map[int]bool) // form object numbers visited in this walk
	var out []ImageInfo
	l.walk(doc, pageNr, res, seen, &out)
	return out, nil
}

// LocateAll runs Locate across all pages.
func (l *Locator) LocateAll(doc *document.Document) ([]ImageInfo, error) {
	var out []ImageInfo
	for pageNr := 1; pageNr <= doc.PageCount(); pageNr++ {
		infos, err := l.Locate(doc, pageNr)
		if err != nil {
			l.logger.Warn("skipping page during image scan",
				observability.Int("page", pageNr), observability.Error("err", err))
			continue
		}
		out = append(out, infos...)
	}
	return out, nil
}

func (l *Locator) walk(doc *document.Document, pageNr int, res types.Dict, seen map[int]bool, out *[]ImageInfo) {
	ctx := doc.Context()
	xobjObj, found := res.Find("XObject")
	if !found {
		return
	}
	xobjs, err := ctx.DereferenceDict(xobjObj)
	if err != nil || xobjs == nil {
		l.logger.Warn("unresolvable XObject dictionary",
			observability.Int("page", pageNr), observability.Error("err", err))
		return
	}

	for name, entry := range xobjs {
		objNr := 0
		if ref, ok := entry.(types.IndirectRef); ok {
			objNr = ref.ObjectNumber.Value()
		}
		sd, _, err := ctx.DereferenceStreamDict(entry)
		if err != nil || sd == nil {
			l.logger.Warn("skipping malformed XObject entry",
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
			*out = append(*out, l.describe(doc, pageNr, name, objNr, xobjs, sd))
		case "Form":
			if objNr != 0 {
				if seen[objNr] {
					continue
				}
				seen[objNr] = true
			}
			formResObj, found := sd.Dict.Find("Resources")
			if !found {
				continue
			}
			formRes, err := ctx.DereferenceDict(formResObj)
			if err != nil || formRes == nil {
				l.logger.Warn("unresolvable form resources",
					observability.Int("page", pageNr),
					observability.String("name", name),
					observability.Error("err", err))
				continue
			}
			l.walk(doc, pageNr, formRes, seen, out)
		}
	}
}

func (l *Locator) describe(doc *document.Document, pageNr int, name string, objNr int, owner types.Dict, sd *types.StreamDict) ImageInfo {
	ctx := doc.Context()
	info := ImageInfo{
		Page:  pageNr,
		Name:  name,
		ObjNr: objNr,
		owner: owner,
		sd:    sd,
	}
	if w := sd.Dict.IntEntry("Width"); w != nil {
		info.Width = *w
	}
	if h := sd.Dict.IntEntry("Height"); h != nil {
		info.Height = *h
	}
	if bpc := sd.Dict.IntEntry("BitsPerComponent"); bpc != nil {
		info.BitsPerComponent = *bpc
	}
	if mask := sd.Dict.BooleanEntry("ImageMask"); mask != nil {
		info.IsMask = *mask
	}
	if _, found := sd.Dict.Find("SMask"); found {
		info.HasSoftMask = true
	}
	info.Filters = filterChain(ctx, sd.Dict)
	info.ColorSpace = colorSpaceName(ctx, sd.Dict)
	info.EncodedLength = int64(len(sd.Raw))
	if info.EncodedLength == 0 && sd.StreamLength != nil {
		info.EncodedLength = *sd.StreamLength
	}
	return info
}

// filterChain resolves the Filter entry, which may be a single name or an
// array of chained filters.
func filterChain(ctx *model.Context, d types.Dict) []string {
	obj, found := d.Find("Filter")
	if !found {
		return nil
	}
	resolved, err := ctx.Dereference(obj)
	if err != nil {
		return nil
	}
	switch f := resolved.(type) {
	case types.Name:
		return []string{f.Value()}
	case types.Array:
		var out []string
		for _, entry := range f {
			if n, ok := entry.(types.Name); ok {
				out = append(out, n.Value())
			}
		}
		return out
	}
	return nil
}

func colorSpaceName(ctx *model.Context, d types.Dict) string {
	obj, found := d.Find("ColorSpace")
	if !found {
		return ""
	}
	resolved, err := ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch cs := resolved.(type) {
	case types.Name:
		return cs.Value()
	case types.Array:
		if len(cs) > 0 {
			if n, ok := cs[0].(types.Name); ok {
				return n.Value()
			}
		}
	}
	return ""
}
