// Package split partitions a document into multiple output documents bounded
// by page count or by actual serialized byte size.
package split

import (
	"bytes"
	"fmt"

	"github.com/wudi/pdfslim/document"
	"github.com/wudi/pdfslim/observability"
)

// ProgressFunc receives pages consumed / total pages as chunks complete.
type ProgressFunc func(done, total int)

// LimitTooSmallError reports a size limit no single page can meet. It is
// raised before any output is produced.
type LimitTooSmallError struct {
	MinPageSize int64
	Limit       int64
}

func (e *LimitTooSmallError) Error() string {
	return fmt.Sprintf("size limit %d bytes is too small: the smallest observed single-page document is %d bytes", e.Limit, e.MinPageSize)
}

// PageTooLargeError reports one page whose serialization alone exceeds the
// limit.
type PageTooLargeError struct {
	Page  int
	Size  int64
	Limit int64
}

func (e *PageTooLargeError) Error() string {
	return fmt.Sprintf("page %d serializes to %d bytes, exceeding the %d byte limit", e.Page, e.Size, e.Limit)
}

// Splitter produces size- or count-bounded output documents from a source.
type Splitter struct {
	logger observability.Logger
}

// New returns a splitter. logger may be nil.
func New(logger observability.Logger) *Splitter {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Splitter{logger: logger}
}

// ByPages partitions the document into consecutive chunks of pagesPerChunk
// pages; the last chunk may be shorter. Every chunk is an independent
// document copied from the source.
func (s *Splitter) ByPages(doc *document.Document, pagesPerChunk int, progress ProgressFunc) ([][]byte, error) {
	if pagesPerChunk < 1 {
		return nil, fmt.Errorf("pages per chunk must be at least 1, got %d", pagesPerChunk)
	}
	total := doc.PageCount()
	var chunks [][]byte
	for start := 1; start <= total; start += pagesPerChunk {
		end := start + pagesPerChunk - 1
		if end > total {
			end = total
		}
		var buf bytes.Buffer
		if err := doc.WritePageRange(&buf, start, end); err != nil {
			return nil, err
		}
		chunks = append(chunks, buf.Bytes())
		if progress != nil {
			progress(end, total)
		}
	}
	s.logger.Info("split by pages finished",
		observability.Int("chunks", len(chunks)),
		observability.Int("pagesPerChunk", pagesPerChunk))
	return chunks, nil
}

// countingWriter measures serialized size without retaining the bytes.
type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// measure serializes the inclusive page range and returns its byte size.
func measure(doc *document.Document, from, to int, probes *int) (int64, error) {
	var cw countingWriter
	if err := doc.WritePageRange(&cw, from, to); err != nil {
		return 0, err
	}
	*probes++
	return cw.n, nil
}

// BySize packs pages into the minimum number of chunks whose actual
// serialized size stays within limit. Page byte contribution is far from
// uniform, so every decision measures real serialized output; an exponential
// probe followed by binary search keeps that to O(log pages) serializations
// per chunk.
func (s *Splitter) BySize(doc *document.Document, limit int64, progress ProgressFunc) ([][]byte, error) {
	if limit < 1 {
		return nil, fmt.Errorf("size limit must be positive, got %d", limit)
	}
	total := doc.PageCount()
	probes := 0

	// Sample a few pages up front: if even the smallest single-page document
	// exceeds the limit, packing can never succeed and the caller should
	// raise the limit or switch to page-count splitting.
	minSize, err := s.sampleMinPageSize(doc, &probes)
	if err != nil {
		return nil, err
	}
	if minSize > limit {
		return nil, &LimitTooSmallError{MinPageSize: minSize, Limit: limit}
	}

	var chunks [][]byte
	for start := 1; start <= total; {
		fit, err := s.findWindow(doc, start, total, limit, &probes)
		if err != nil {
			return nil, err
		}
		end := start + fit - 1
		var buf bytes.Buffer
		if err := doc.WritePageRange(&buf, start, end); err != nil {
			return nil, err
		}
		chunks = append(chunks, buf.Bytes())
		start = end + 1
		if progress != nil {
			progress(end, total)
		}
	}

	s.logger.Info("split by size finished",
		observability.Int("chunks", len(chunks)),
		observability.Int64("limit", limit),
		observability.Int("serializeProbes", probes))
	return chunks, nil
}

// findWindow returns the maximum number of pages starting at start whose
// serialization fits the limit.
func (s *Splitter) findWindow(doc *document.Document, start, total int, limit int64, probes *int) (int, error) {
	size, err := measure(doc, start, start, probes)
	if err != nil {
		return 0, err
	}
	if size > limit {
		return 0, &PageTooLargeError{Page: start, Size: size, Limit: limit}
	}

	// Exponential probe: double the window until it no longer fits or the
	// end of the document is reached.
	lo := 1 // largest window known to fit
	hi := 0 // smallest window known to exceed, 0 while unknown
	w := 1
	for hi == 0 && start+w-1 < total {
		w *= 2
		if start+w-1 > total {
			w = total - start + 1
		}
		size, err := measure(doc, start, start+w-1, probes)
		if err != nil {
			return 0, err
		}
		if size <= limit {
			lo = w
		} else {
			hi = w
		}
	}

	// Binary search inside the bracket (lo fits, hi does not).
	for hi > 0 && lo+1 < hi {
		mid := (lo + hi) / 2
		size, err := measure(doc, start, start+mid-1, probes)
		if err != nil {
			return 0, err
		}
		if size <= limit {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// sampleMinPageSize serializes up to five evenly spaced single pages and
// returns the smallest observed size.
func (s *Splitter) sampleMinPageSize(doc *document.Document, probes *int) (int64, error) {
	total := doc.PageCount()
	samples := total
	if samples > 5 {
		samples = 5
	}
	min := int64(-1)
	for i := 0; i < samples; i++ {
		pageNr := 1 + i*(total-1)/maxInt(samples-1, 1)
		size, err := measure(doc, pageNr, pageNr, probes)
		if err != nil {
			return 0, err
		}
		if min < 0 || size < min {
			min = size
		}
	}
	return min, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
