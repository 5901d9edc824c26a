package optimize

import (
	"context"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfslim/internal/testpdf"
)

func TestRecompressReplacesWhenSmaller(t *testing.T) {
	// Noisy bitmap encoded at high quality: recompressing at quality 40 with
	// the 0.75x downscale must come out smaller.
	doc := load(t, testpdf.PageSpec{
		Text:  "photo page",
		Image: &testpdf.ImageSpec{Width: 300, Height: 300, Noise: true, Quality: 95},
	})

	var lastProcessed, lastTotal int
	rc := NewRecompressor(Config{Quality: 40, Workers: 1})
	stats, err := rc.Recompress(context.Background(), doc, func(p, n int) {
		lastProcessed, lastTotal = p, n
	})
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}
	if stats.Located != 1 {
		t.Fatalf("located: %d", stats.Located)
	}
	if stats.Replaced != 1 {
		t.Fatalf("expected replacement, got %d", stats.Replaced)
	}
	if stats.BytesReplaced >= stats.BytesOriginal {
		t.Errorf("replacement is not smaller: %d >= %d", stats.BytesReplaced, stats.BytesOriginal)
	}
	if lastProcessed != 1 || lastTotal != 1 {
		t.Errorf("progress: %d/%d", lastProcessed, lastTotal)
	}

	// The resource entry now points at the new object.
	infos, err := NewLocator(nil).Locate(doc, 1)
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("image count after replacement: %d", len(infos))
	}
	if infos[0].EncodedLength != stats.BytesReplaced {
		t.Errorf("resource entry not repointed: %d != %d", infos[0].EncodedLength, stats.BytesReplaced)
	}
}

func TestRecompressKeepsOriginalWhenLarger(t *testing.T) {
	// A flat image already encoded at low quality; re-encoding at quality 100
	// can only grow it, so the original must be retained.
	doc := load(t, testpdf.PageSpec{
		Image: &testpdf.ImageSpec{Width: 100, Height: 100, Quality: 15},
	})

	before, err := NewLocator(nil).Locate(doc, 1)
	if err != nil || len(before) != 1 {
		t.Fatalf("setup locate: %v %d", err, len(before))
	}

	rc := NewRecompressor(Config{Quality: 100, Workers: 1})
	stats, err := rc.Recompress(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}
	if stats.Replaced != 0 {
		t.Fatalf("replaced-count must be unaffected, got %d", stats.Replaced)
	}

	after, err := NewLocator(nil).Locate(doc, 1)
	if err != nil || len(after) != 1 {
		t.Fatalf("relocate: %v %d", err, len(after))
	}
	if after[0].EncodedLength != before[0].EncodedLength {
		t.Errorf("original bytes were not retained: %d != %d", after[0].EncodedLength, before[0].EncodedLength)
	}
}

func TestRecompressNestedFormImage(t *testing.T) {
	doc := load(t, testpdf.PageSpec{
		FormImage: &testpdf.ImageSpec{Width: 250, Height: 250, Noise: true, Quality: 95},
	})
	rc := NewRecompressor(Config{Quality: 30, Workers: 2})
	stats, err := rc.Recompress(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}
	if stats.Replaced != 1 {
		t.Fatalf("nested image not replaced: %+v", stats)
	}
}

func TestDownscaleFactor(t *testing.T) {
	cases := []struct {
		quality int
		want    float64
	}{
		{10, 0.6}, {30, 0.6}, {31, 0.75}, {50, 0.75}, {51, 1.0}, {100, 1.0},
	}
	for _, c := range cases {
		if got := downscaleFactor(c.quality); got != c.want {
			t.Errorf("quality %d: got %v, want %v", c.quality, got, c.want)
		}
	}
}

func TestRawSamplesGray(t *testing.T) {
	info := ImageInfo{Width: 2, Height: 2, BitsPerComponent: 8, ColorSpace: "DeviceGray"}
	img := rawSamples(info, []byte{0, 85, 170, 255})
	if img == nil {
		t.Fatal("gray reconstruction failed")
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("bounds: %v", img.Bounds())
	}
}

func TestRawSamplesRejectsShortData(t *testing.T) {
	info := ImageInfo{Width: 10, Height: 10, BitsPerComponent: 8, ColorSpace: "DeviceRGB"}
	if img := rawSamples(info, []byte{1, 2, 3}); img != nil {
		t.Fatal("short data must fail the hypothesis")
	}
}

func TestQualityClamping(t *testing.T) {
	if rc := NewRecompressor(Config{Quality: 5}); rc.cfg.Quality != 10 {
		t.Errorf("low clamp: %d", rc.cfg.Quality)
	}
	if rc := NewRecompressor(Config{Quality: 150}); rc.cfg.Quality != 100 {
		t.Errorf("high clamp: %d", rc.cfg.Quality)
	}
}

func TestRecompressSharedImageCountsBytesOnce(t *testing.T) {
	doc := load(t,
		testpdf.PageSpec{Image: &testpdf.ImageSpec{Width: 200, Height: 200, Noise: true, Quality: 95}},
		testpdf.PageSpec{Image: &testpdf.ImageSpec{Width: 200, Height: 200, Noise: true, Quality: 95, Seed: 7}},
	)

	xobjects := func(pageNr int) types.Dict {
		t.Helper()
		res, err := doc.PageResources(pageNr)
		if err != nil {
			t.Fatalf("resources page %d: %v", pageNr, err)
		}
		xobjObj, found := res.Find("XObject")
		if !found {
			t.Fatalf("page %d has no XObject dict", pageNr)
		}
		xobjs, err := doc.Context().DereferenceDict(xobjObj)
		if err != nil {
			t.Fatalf("xobjects page %d: %v", pageNr, err)
		}
		return xobjs
	}
	// Point page 2 at page 1's image so both pages paint one shared stream.
	xobjects(2)["Im0"] = xobjects(1)["Im0"]

	infos, err := NewLocator(nil).LocateAll(doc)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(infos) != 2 || infos[0].ObjNr != infos[1].ObjNr {
		t.Fatalf("expected one shared image on two pages, got %+v", infos)
	}
	single := infos[0].EncodedLength

	stats, err := NewRecompressor(Config{Quality: 40, Workers: 1}).Recompress(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("recompress: %v", err)
	}
	if stats.Located != 2 {
		t.Fatalf("located: %d", stats.Located)
	}
	if stats.Replaced != 1 {
		t.Errorf("shared image replaced more than once: %d", stats.Replaced)
	}
	if stats.BytesOriginal != single {
		t.Errorf("shared image bytes counted per occurrence: got %d, want %d", stats.BytesOriginal, single)
	}
}
