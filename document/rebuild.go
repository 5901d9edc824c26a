package document

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/wudi/pdfslim/observability"
)

// Rebuild replaces the current graph with a fresh one containing only objects
// still reachable from the page tree. Editing repoints or drops references and
// leaves the superseded objects behind; serializing and re-parsing with an
// optimization pass is how those orphans are excluded from the final bytes.
//
// A failed optimization pass keeps the unoptimized graph: a larger output
// beats no output. Rebuild errors only when the current graph cannot be
// serialized or re-read at all, which a later Save would hit identically.
func (d *Document) Rebuild() error {
	if _, err := d.Save(DefaultSaveOptions()); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	// Save left d.ctx as a fresh parse of d.source. Optimization mutates it;
	// on failure the retained bytes restore the unoptimized graph.
	if err := api.OptimizeContext(d.ctx); err != nil {
		d.logger.Warn("rebuild: optimization failed, keeping unoptimized graph",
			observability.Error("err", err))
		return d.restore()
	}
	if _, err := d.Save(DefaultSaveOptions()); err != nil {
		d.logger.Warn("rebuild: serializing optimized graph failed, keeping unoptimized graph",
			observability.Error("err", err))
		return d.restore()
	}

	d.logger.Debug("graph rebuilt",
		observability.Int("pages", d.ctx.PageCount),
		observability.Int64("bytes", int64(len(d.source))))
	return nil
}

// restore re-parses the retained source bytes over a graph left in an
// undefined state.
func (d *Document) restore() error {
	ctx, err := d.reload(d.source)
	if err != nil {
		return fmt.Errorf("rebuild: reloading document: %w", err)
	}
	d.ctx = ctx
	return nil
}
