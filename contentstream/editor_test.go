package contentstream

import (
	"bytes"
	"testing"
)

func TestRemoveImageOpsBareDo(t *testing.T) {
	src := []byte("BT (hello) Tj ET /Im0 Do BT (world) Tj ET")
	out, n := RemoveImageOps(src, map[string]bool{"Im0": true})
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	if bytes.Contains(out, []byte("Do")) {
		t.Errorf("Do survived removal: %q", out)
	}
	for _, keep := range []string{"(hello)", "(world)", "Tj", "BT", "ET"} {
		if !bytes.Contains(out, []byte(keep)) {
			t.Errorf("lost %q: %q", keep, out)
		}
	}
}

func TestRemoveImageOpsKeepsStateOperators(t *testing.T) {
	src := []byte("q 0.5 0 0 0.5 10 10 cm /Im1 Do Q")
	out, n := RemoveImageOps(src, map[string]bool{"Im1": true})
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	// The q/Q bracket and the cm transform are unrelated state; they stay.
	if !bytes.Contains(out, []byte("q")) || !bytes.Contains(out, []byte("Q")) {
		t.Errorf("q/Q pair was removed: %q", out)
	}
	if !bytes.Contains(out, []byte("cm")) {
		t.Errorf("cm was removed: %q", out)
	}
	if bytes.Contains(out, []byte("Im1")) {
		t.Errorf("image invocation survived: %q", out)
	}
}

func TestRemoveImageOpsLeavesOtherXObjects(t *testing.T) {
	src := []byte("/Fm0 Do /Im0 Do")
	out, n := RemoveImageOps(src, map[string]bool{"Im0": true})
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	if !bytes.Contains(out, []byte("/Fm0 Do")) {
		t.Errorf("form invocation must survive: %q", out)
	}
}

func TestRemoveImageOpsInlineImage(t *testing.T) {
	src := []byte("BT (text) Tj ET q BI /W 2 /H 2 /BPC 8 /CS /RGB ID \x01\x02\x03\x04\x05\x06\x07\x08\x09\x0a\x0b\x0c EI Q")
	out, n := RemoveImageOps(src, nil)
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	if bytes.Contains(out, []byte("BI")) {
		t.Errorf("inline image survived: %q", out)
	}
	if !bytes.Contains(out, []byte("(text) Tj")) {
		t.Errorf("text lost: %q", out)
	}
}

func TestRemoveImageOpsNoMatches(t *testing.T) {
	src := []byte("BT (just text) Tj ET")
	out, n := RemoveImageOps(src, map[string]bool{"Im0": true})
	if n != 0 {
		t.Fatalf("expected no removals, got %d", n)
	}
	if !bytes.Equal(out, src) {
		t.Errorf("stream changed without removals")
	}
}

// Non-image operators keep their count and relative order after editing.
func TestRemoveImageOpsPreservesOperatorOrder(t *testing.T) {
	src := []byte("q BT /F1 10 Tf (a) Tj ET Q /Im0 Do q BT (b) Tj ET Q")
	out, _ := RemoveImageOps(src, map[string]bool{"Im0": true})

	var before, after []string
	for _, tok := range Tokenize(src) {
		if tok.Kind == TokOperator && tok.Val != "Do" {
			before = append(before, tok.Val)
		}
	}
	for _, tok := range Tokenize(out) {
		if tok.Kind == TokOperator {
			after = append(after, tok.Val)
		}
	}
	if len(before) != len(after) {
		t.Fatalf("operator count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("operator order changed at %d: %q != %q", i, before[i], after[i])
		}
	}
}

func TestImageInvocations(t *testing.T) {
	src := []byte("/Im0 Do BT (x) Tj ET /Im1 Do /Im0 Do")
	names := ImageInvocations(src)
	if len(names) != 2 || names[0] != "Im0" || names[1] != "Im1" {
		t.Fatalf("unexpected invocations: %v", names)
	}
}
