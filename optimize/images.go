package optimize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"runtime"
	"sync"

	"golang.org/x/image/draw"

	// Decode hypotheses beyond JPEG: PNG-style and the extra codecs the
	// x/image module provides. JPX has no pure-Go decoder; such images are
	// left untouched.
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/observability"
)

// Config controls recompression.
type Config struct {
	// Quality is the target JPEG quality, 10-100.
	Quality int
	// Workers bounds concurrent decode/encode work. Zero means NumCPU.
	// Graph mutation always happens on the calling goroutine.
	Workers int
	Logger  observability.Logger
}

// Stats reports the outcome of a recompression pass.
type Stats struct {
	Located       int
	Replaced      int
	BytesOriginal int64
	BytesReplaced int64 // encoded size of the replacement objects
}

// ProgressFunc receives processed/total counts as images complete.
type ProgressFunc func(processed, total int)

// Recompressor re-encodes embedded raster images at a target quality and
// repoints their resource entries when the result is strictly smaller.
type Recompressor struct {
	cfg     Config
	logger  observability.Logger
	locator *Locator
}

// NewRecompressor returns a recompressor. Quality is clamped to [10,100].
func NewRecompressor(cfg Config) *Recompressor {
	if cfg.Quality < 10 {
		cfg.Quality = 10
	}
	if cfg.Quality > 100 {
		cfg.Quality = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Recompressor{cfg: cfg, logger: logger, locator: NewLocator(logger)}
}

var errUndecodable = errors.New("no decode hypothesis succeeded")

// hasCodecFilter reports whether the filter chain ends in an image codec the
// stream decoder cannot unwrap; those payloads are probed directly instead.
func hasCodecFilter(filters []string) bool {
	for _, f := range filters {
		if f == "DCTDecode" || f == "JPXDecode" || f == "JBIG2Decode" || f == "CCITTFaxDecode" {
			return true
		}
	}
	return false
}

// candidate is the pure encode work for one image occurrence, detached from
// the graph so it can run on a worker goroutine.
type candidate struct {
	info    ImageInfo
	raw     []byte
	content []byte // stream-decoded payload, when available

	encoded []byte
	width   int
	height  int
	gray    bool
	ok      bool
}

// Recompress processes every image reachable from every page. Images that no
// hypothesis can decode, image masks, and re-encodings that would grow the
// file are all silently skipped. Replaced objects become orphans; callers run
// document.Rebuild afterwards to shed them.
func (r *Recompressor) Recompress(ctx context.Context, doc *document.Document, progress ProgressFunc) (Stats, error) {
	infos, err := r.locator.LocateAll(doc)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	stats.Located = len(infos)
	if len(infos) == 0 {
		return stats, nil
	}

	// Snapshot payloads on this goroutine; sd.Decode mutates the stream dict
	// and the graph is not safe for concurrent mutation.
	cands := make([]*candidate, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		c := &candidate{info: info, raw: info.sd.Raw}
		if info.sd.Content != nil {
			c.content = info.sd.Content
		} else if !hasCodecFilter(info.Filters) {
			if err := info.sd.Decode(); err == nil {
				c.content = info.sd.Content
			}
		}
		cands = append(cands, c)
	}

	r.encodeAll(ctx, cands)

	mctx := doc.Context()
	replacedRefs := make(map[int]*types.IndirectRef)
	counted := make(map[int]bool)
	processed := 0
	for _, c := range cands {
		processed++
		if progress != nil {
			progress(processed, len(cands))
		}
		info := c.info
		// An image shared across pages occurs once per page; its bytes count
		// once.
		if info.ObjNr == 0 || !counted[info.ObjNr] {
			counted[info.ObjNr] = true
			stats.BytesOriginal += info.EncodedLength
		}

		// A shared image already replaced on an earlier page only needs its
		// resource entry repointed.
		if info.ObjNr != 0 {
			if ref, ok := replacedRefs[info.ObjNr]; ok {
				info.owner[info.Name] = *ref
				continue
			}
		}
		if !c.ok {
			continue
		}
		if int64(len(c.encoded)) >= info.EncodedLength {
			r.logger.Debug("recompression would grow image, keeping original",
				observability.Int("page", info.Page),
				observability.String("name", info.Name),
				observability.Int("original", int(info.EncodedLength)),
				observability.Int("candidate", len(c.encoded)))
			continue
		}

		ref, err := r.insertImage(mctx, c)
		if err != nil {
			r.logger.Warn("inserting replacement image failed",
				observability.String("name", info.Name),
				observability.Error("err", err))
			continue
		}
		info.owner[info.Name] = *ref
		if info.ObjNr != 0 {
			replacedRefs[info.ObjNr] = ref
		}
		stats.Replaced++
		stats.BytesReplaced += int64(len(c.encoded))
	}

	r.logger.Info("image recompression finished",
		observability.Int("located", stats.Located),
		observability.Int("replaced", stats.Replaced))
	return stats, nil
}

// encodeAll runs decode/scale/encode for all candidates, fanning out across
// the configured worker count. Candidates are pure byte transformations; a
// failing candidate is marked not-ok and skipped, never fatal.
func (r *Recompressor) encodeAll(ctx context.Context, cands []*candidate) {
	workers := r.cfg.Workers
	if workers > len(cands) {
		workers = len(cands)
	}
	if workers <= 1 {
		for _, c := range cands {
			if ctx.Err() != nil {
				return
			}
			r.encodeOne(c)
		}
		return
	}

	jobs := make(chan *candidate)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				r.encodeOne(c)
			}
		}()
	}
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		jobs <- c
	}
	close(jobs)
	wg.Wait()
}

func (r *Recompressor) encodeOne(c *candidate) {
	info := c.info
	if info.IsMask {
		return
	}
	img, err := decodeRaster(c)
	if err != nil {
		r.logger.Debug("image not decodable, leaving untouched",
			observability.Int("page", info.Page),
			observability.String("name", info.Name))
		return
	}

	if scale := downscaleFactor(r.cfg.Quality); scale < 1.0 {
		img = resize(img, scale)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.cfg.Quality}); err != nil {
		return
	}
	c.encoded = buf.Bytes()
	c.width = img.Bounds().Dx()
	c.height = img.Bounds().Dy()
	c.gray = isGray(img)
	c.ok = true
}

// decodeRaster attempts the decode hypotheses in order: registered codecs
// over the raw encoded bytes, the same codecs over the stream-decoded
// payload, and finally raw sample reconstruction from the declared metadata.
// Declared PDF filters do not map 1:1 onto codec-recognizable containers, so
// probing beats trusting the filter chain.
func decodeRaster(c *candidate) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(c.raw)); err == nil {
		return img, nil
	}
	if c.content != nil {
		if img, _, err := image.Decode(bytes.NewReader(c.content)); err == nil {
			return img, nil
		}
		if img := rawSamples(c.info, c.content); img != nil {
			return img, nil
		}
	}
	return nil, errUndecodable
}

// rawSamples reconstructs a bitmap from unencoded sample data using the
// declared dimensions and color space. Only the common 8-bpc cases are
// supported; anything else fails the hypothesis.
func rawSamples(info ImageInfo, data []byte) image.Image {
	w, h := info.Width, info.Height
	if w <= 0 || h <= 0 {
		return nil
	}
	bpc := info.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	if bpc != 8 {
		return nil
	}
	switch info.ColorSpace {
	case "DeviceGray":
		if len(data) < w*h {
			return nil
		}
		return &image.Gray{Pix: data, Stride: w, Rect: image.Rect(0, 0, w, h)}
	case "DeviceRGB":
		if len(data) < w*h*3 {
			return nil
		}
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		i := 0
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := (y*w + x) * 4
				img.Pix[off] = data[i]
				img.Pix[off+1] = data[i+1]
				img.Pix[off+2] = data[i+2]
				img.Pix[off+3] = 255
				i += 3
			}
		}
		return img
	case "DeviceCMYK":
		if len(data) < w*h*4 {
			return nil
		}
		img := image.NewCMYK(image.Rect(0, 0, w, h))
		copy(img.Pix, data)
		return img
	}
	return nil
}

// downscaleFactor implements the quality-driven resize heuristic: aggressive
// quality settings also shrink dimensions.
func downscaleFactor(quality int) float64 {
	switch {
	case quality <= 30:
		return 0.6
	case quality <= 50:
		return 0.75
	}
	return 1.0
}

func resize(img image.Image, scale float64) image.Image {
	b := img.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// insertImage registers the re-encoded JPEG as a new indirect image object.
// SMask and Intent entries are carried over so transparency and rendering
// intent references stay alive.
func (r *Recompressor) insertImage(mctx *model.Context, c *candidate) (*types.IndirectRef, error) {
	cs := "DeviceRGB"
	if c.gray {
		cs = "DeviceGray"
	}
	d := types.Dict{
		"Type":             types.Name("XObject"),
		"Subtype":          types.Name("Image"),
		"Width":            types.Integer(c.width),
		"Height":           types.Integer(c.height),
		"ColorSpace":       types.Name(cs),
		"BitsPerComponent": types.Integer(8),
		"Filter":           types.Name("DCTDecode"),
		"Length":           types.Integer(len(c.encoded)),
	}
	for _, key := range []string{"SMask", "Intent"} {
		if v, found := c.info.sd.Dict.Find(key); found {
			d[key] = v
		}
	}

	sd := types.StreamDict{
		Dict:           d,
		Raw:            c.encoded,
		FilterPipeline: []types.PDFFilter{{Name: "DCTDecode"}},
	}
	length := int64(len(c.encoded))
	sd.StreamLength = &length

	return mctx.IndRefForNewObject(sd)
}
