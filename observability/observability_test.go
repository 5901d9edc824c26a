package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestFields(t *testing.T) {
	f := Int("pages", 12)
	if f.Key() != "pages" {
		t.Fatalf("unexpected key %q", f.Key())
	}
	if f.Value().(int) != 12 {
		t.Fatalf("unexpected value %v", f.Value())
	}
}

func TestZerologOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.InfoLevel)

	log.Debug("hidden")
	log.Info("images replaced", Int("count", 3), String("stage", "compress"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message should be filtered at info level")
	}
	if !strings.Contains(out, "images replaced") || !strings.Contains(out, `"count":3`) {
		t.Errorf("missing expected fields in output: %s", out)
	}
}

func TestZerologWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.InfoLevel).With(Int("page", 7))
	log.Info("scan")
	if !strings.Contains(buf.String(), `"page":7`) {
		t.Errorf("derived logger lost bound field: %s", buf.String())
	}
}
