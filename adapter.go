package docmd

import "context"

// GlyphSource is the required external collaborator of §6: it delivers
// page dimensions and an ordered shaper event stream. The core never
// parses PDF bytes itself; a GlyphSource implementation does that at the
// boundary (see cmd/docmd for the reference implementation).
type GlyphSource interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context) (int, error)
	// Page returns the page's dimensions and ordered shaper events.
	Page(ctx context.Context, index int) (width, height float64, events []ShaperEvent, err error)
	Close() error
}

// RasterSource is an optional extension a GlyphSource may additionally
// implement to supply a page's rasterized image for OCR fallback. The
// core type-asserts for it rather than widening GlyphSource itself,
// since most glyph sources (anything that never needs OCR) have no
// raster to give.
type RasterSource interface {
	PageRaster(ctx context.Context, index int) ([]byte, error)
}

// OCRAdapter is the optional external collaborator invoked only when
// glyph extraction yields less than one character of text, or OCR is
// explicitly enabled, per §6. Grounded on libaf/reading.Reader's
// Read(ctx, pages, opts) ([]string, error) contract.
type OCRAdapter interface {
	Recognize(ctx context.Context, raster []byte, language string) (string, error)
}

// VisionAdapter is the optional external collaborator that the core
// never invokes itself; it only consumes the core's advisory
// GarbledFontAdvisory. Declared here purely as the documented contract
// a host application may implement.
type VisionAdapter interface {
	Recognize(ctx context.Context, pageImage []byte, hint GarbledFontAdvisory) (string, error)
}

// recognizeWithFallback mirrors libaf/reading.FallbackReader: when the
// glyph source's extracted text is empty, the OCR adapter is tried next,
// and its result is used only if non-empty. A missing adapter, an adapter
// error or an empty result is returned as an ErrOCRUnavailable error with
// empty text; its caller, tryOCRFallback, logs that error and does not
// record it as a page failure.
func recognizeWithFallback(ctx context.Context, ocr OCRAdapter, raster []byte, language string, pageNum int) (string, *Error) {
	if ocr == nil {
		return "", newError(ErrOCRUnavailable, pageNum, errNoOCRAdapter)
	}
	text, err := ocr.Recognize(ctx, raster, language)
	if err != nil {
		return "", newError(ErrOCRUnavailable, pageNum, err)
	}
	if text == "" {
		return "", newError(ErrOCRUnavailable, pageNum, errOCREmptyResult)
	}
	return text, nil
}
