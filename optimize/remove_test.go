package optimize

import (
	"bytes"
	"context"
	"testing"

	"github.com/wudi/pdfslim/internal/testpdf"
)

func TestRemoveImagesFromPage(t *testing.T) {
	doc := load(t, testpdf.PageSpec{
		Text:  "keep this text",
		Image: &testpdf.ImageSpec{Width: 50, Height: 50},
	})

	stats, err := NewRemover(nil).Remove(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if stats.ImagesRemoved != 1 {
		t.Fatalf("images removed: %d", stats.ImagesRemoved)
	}
	if stats.StreamsRewritten != 1 {
		t.Fatalf("streams rewritten: %d", stats.StreamsRewritten)
	}

	infos, err := NewLocator(nil).Locate(doc, 1)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("images still referenced: %d", len(infos))
	}

	// Re-dereference from the xref table: the rewrite must be stored, not
	// just applied to a dereferenced copy.
	streams, err := doc.PageContents(1)
	if err != nil || len(streams) != 1 {
		t.Fatalf("contents: %v %d", err, len(streams))
	}
	sd := streams[0].Stream
	if sd.Content == nil {
		if err := sd.Decode(); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	if bytes.Contains(sd.Content, []byte("Do")) {
		t.Errorf("painting operator survived: %q", sd.Content)
	}
	if !bytes.Contains(sd.Content, []byte("(keep this text) Tj")) {
		t.Errorf("text lost: %q", sd.Content)
	}
}

func TestRemoveImagesFromPageSurvivesSave(t *testing.T) {
	doc := load(t, testpdf.PageSpec{
		Text:  "durable text",
		Image: &testpdf.ImageSpec{Width: 50, Height: 50},
	})
	if _, err := NewRemover(nil).Remove(context.Background(), doc, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := doc.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	streams, err := doc.PageContents(1)
	if err != nil || len(streams) != 1 {
		t.Fatalf("contents: %v %d", err, len(streams))
	}
	sd := streams[0].Stream
	if sd.Content == nil {
		if err := sd.Decode(); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	if !bytes.Contains(sd.Content, []byte("(durable text) Tj")) {
		t.Errorf("text lost after rebuild: %q", sd.Content)
	}
}

func TestRemoveImagesInsideForm(t *testing.T) {
	doc := load(t, testpdf.PageSpec{
		Text:      "form page",
		FormImage: &testpdf.ImageSpec{Width: 30, Height: 30},
	})

	stats, err := NewRemover(nil).Remove(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if stats.ImagesRemoved != 1 {
		t.Fatalf("images removed: %d", stats.ImagesRemoved)
	}

	infos, err := NewLocator(nil).Locate(doc, 1)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("nested image still referenced: %d", len(infos))
	}

	// The form's own content stream must have been rewritten and stored.
	res, err := doc.PageResources(1)
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	xobjObj, found := res.Find("XObject")
	if !found {
		t.Fatal("page lost its XObject dictionary")
	}
	xobjs, err := doc.Context().DereferenceDict(xobjObj)
	if err != nil {
		t.Fatalf("xobjects: %v", err)
	}
	form, _, err := doc.Context().DereferenceStreamDict(xobjs["Fm0"])
	if err != nil || form == nil {
		t.Fatalf("form: %v", err)
	}
	if form.Content == nil {
		if err := form.Decode(); err != nil {
			t.Fatalf("decode form: %v", err)
		}
	}
	if bytes.Contains(form.Content, []byte("Do")) {
		t.Errorf("painting operator survived inside form: %q", form.Content)
	}
	if !bytes.Contains(form.Content, []byte("q")) {
		t.Errorf("state operators lost from form: %q", form.Content)
	}
}

func TestRemoveInlineImagesWithoutResources(t *testing.T) {
	// Inline images do not need a resource dictionary; a resource-less page
	// still gets its content edited.
	doc := load(t, testpdf.PageSpec{
		NoResources: true,
		RawContent:  "0 0 m 100 100 l S\nq BI /W 2 /H 2 /CS /RGB /BPC 8 ID aaaabbbbcccc EI Q\n",
	})

	stats, err := NewRemover(nil).Remove(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if stats.StreamsRewritten != 1 {
		t.Fatalf("streams rewritten: %d", stats.StreamsRewritten)
	}

	streams, err := doc.PageContents(1)
	if err != nil || len(streams) != 1 {
		t.Fatalf("contents: %v %d", err, len(streams))
	}
	sd := streams[0].Stream
	if sd.Content == nil {
		if err := sd.Decode(); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	if bytes.Contains(sd.Content, []byte("BI")) {
		t.Errorf("inline image survived: %q", sd.Content)
	}
	if !bytes.Contains(sd.Content, []byte("100 100 l S")) {
		t.Errorf("vector content lost: %q", sd.Content)
	}
}

func TestRemoveImagesNoImages(t *testing.T) {
	doc := load(t, testpdf.PageSpec{Text: "nothing to do"})
	stats, err := NewRemover(nil).Remove(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if stats.ImagesRemoved != 0 || stats.StreamsRewritten != 0 {
		t.Fatalf("unexpected edits: %+v", stats)
	}
}

func TestRemoveImagesProgress(t *testing.T) {
	doc := load(t,
		testpdf.PageSpec{Text: "a"},
		testpdf.PageSpec{Text: "b"},
	)
	var calls []int
	_, err := NewRemover(nil).Remove(context.Background(), doc, func(done, total int) {
		if total != 2 {
			t.Errorf("total: %d", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Fatalf("progress calls: %v", calls)
	}
}
