package docmd

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// PageInput is one page's raw shaper output, the Glyph source adapter's
// unit of delivery (§6). Raster is fetched lazily, only when the page
// actually needs OCR fallback.
type PageInput struct {
	Index  int
	Width  float64
	Height float64
	Events []ShaperEvent
	Raster func() []byte
}

// PageFailure records a non-fatal per-page error, per §7's propagation
// policy: every page's outcome is carried on the document result, not
// just the first failure.
type PageFailure struct {
	Page int
	Err  *Error
}

// PageOutcome is one page's pipeline result: its emitted Markdown (empty
// on DegenerateLayout), its garbled-font advisory, and its contribution
// to cross-page normalization.
type PageOutcome struct {
	Index     int
	Markdown  string
	Lines     []string // flattened text lines, for the Cross-Page Normalizer
	Advisory  GarbledFontAdvisory
	Failure   *PageFailure
}

// DocumentResult is the Reading-Order Merger's final output: the
// normalized Markdown, its statistics, and every page-level failure or
// garbled-font advisory recorded along the way.
type DocumentResult struct {
	Markdown      string
	Stats         DocumentStats
	PageFailures  []PageFailure
	GarbledPages  map[int]GarbledFontAdvisory
}

// processPage runs the per-page pipeline (§4.1-§4.9, plus the §4.11
// pre-pass) over one page's shaper events and returns its PageOutcome.
// It never returns a fatal error; DegenerateLayout is folded into an
// empty-Markdown outcome per §7, unless the OCR adapter recovers text.
func processPage(p PageInput, cfg Config, opts ConvertOptions, ocr OCRAdapter, logger *zap.Logger) PageOutcome {
	lines := BuildLines(p.Events)

	needsOCR := len(lines) == 0 || opts.EnableOCR
	if needsOCR {
		if outcome, ok := tryOCRFallback(p, lines, cfg, opts, ocr, logger); ok {
			return outcome
		}
		if len(lines) == 0 {
			return PageOutcome{
				Index:    p.Index,
				Markdown: "",
				Failure:  &PageFailure{Page: p.Index, Err: newError(ErrDegenerateLayout, p.Index, errEmptyLines)},
			}
		}
	}

	lines = RepairPage(lines, cfg)

	layout, err := DetectColumns(lines, p.Width, p.Height, cfg)
	if err != nil {
		docErr, _ := err.(*Error)
		if docErr == nil {
			docErr = newError(ErrInternal, p.Index, err)
		}
		return PageOutcome{Index: p.Index, Failure: &PageFailure{Page: p.Index, Err: docErr}}
	}

	bodySize := BodySize(lines)

	classified := make([][]ClassifiedBlock, len(layout.Columns))
	tables := make([][][]Table, len(layout.Columns))

	lineOffset := 0
	for ci, col := range layout.Columns {
		blocks := GroupBlocks(col.Lines, cfg)
		cb := make([]ClassifiedBlock, len(blocks))
		for bi, b := range blocks {
			blockClassified := ClassifyBlock(b, bodySize, cfg)
			blockClassified.ColumnIndex = ci
			cb[bi] = blockClassified
		}
		RelabelProseColumns(cb, layout.IsMultiColumn)
		cb = MergeAdjacentSameType(cb)
		classified[ci] = cb

		blockTables := make([][]Table, len(cb))
		for bi, blk := range cb {
			if blk.Type != BlockPotentialTable {
				continue
			}
			blockLines := strings.Split(blk.Text, "\n")
			cellsByRow := cellsByRowFromLines(blk.Lines, cfg)
			blockTables[bi] = DetectTables(blockLines, lineOffset, cellsByRow, cfg)
			lineOffset += len(blockLines)
		}
		tables[ci] = blockTables
	}

	markdown := EmitPage(layout, classified, tables, bodySize, cfg, opts)
	if !opts.DisableMath {
		markdown = applyMathTokenization(markdown, cfg)
	}

	advisory := DetectGarbledFont(markdown, cfg)
	if logger != nil && advisory.Recommend {
		logger.Info("page flagged for vision fallback",
			zap.Int("page", p.Index), zap.String("reason", advisory.Reason),
			zap.Float64("garbled_pct", advisory.GarbledPercentage))
	}

	return PageOutcome{
		Index:    p.Index,
		Markdown: markdown,
		Lines:    strings.Split(markdown, "\n"),
		Advisory: advisory,
	}
}

// tryOCRFallback mirrors libaf/reading.FallbackReader's ordering: OCR is
// attempted only when the glyph text is empty or OCR was explicitly
// requested (§6), and its result is used only if it actually recognized
// text. A nil adapter or an OCR failure is logged and otherwise silent:
// the caller falls back to the glyph-derived pipeline, or to a
// DegenerateLayout outcome if there were no glyph lines either.
func tryOCRFallback(p PageInput, glyphLines []Line, cfg Config, opts ConvertOptions, ocr OCRAdapter, logger *zap.Logger) (PageOutcome, bool) {
	if len(glyphLines) > 0 && !opts.EnableOCR {
		return PageOutcome{}, false
	}
	if p.Raster == nil {
		return PageOutcome{}, false
	}
	raster := p.Raster()
	if len(raster) == 0 {
		return PageOutcome{}, false
	}

	text, ocrErr := recognizeWithFallback(context.Background(), ocr, raster, opts.Language, p.Index)
	if ocrErr != nil {
		if logger != nil {
			logger.Info("OCR fallback unavailable", zap.Int("page", p.Index), zap.Error(ocrErr))
		}
		return PageOutcome{}, false
	}
	if len(glyphLines) > 0 {
		// Glyph extraction already produced text; OCR was only
		// explicitly requested, not required. Prefer the glyph
		// pipeline's richer structure over flat OCR text.
		return PageOutcome{}, false
	}

	markdown := ocrTextToMarkdown(text)
	if !opts.DisableMath {
		markdown = applyMathTokenization(markdown, cfg)
	}
	advisory := DetectGarbledFont(markdown, cfg)
	return PageOutcome{
		Index:    p.Index,
		Markdown: markdown,
		Lines:    strings.Split(markdown, "\n"),
		Advisory: advisory,
	}, true
}

// ocrTextToMarkdown turns flat OCR output into paragraph-separated
// Markdown: blank lines delimit paragraphs, and interior line breaks are
// joined with a space since OCR line boundaries don't carry the glyph
// pipeline's column/line-height information.
func ocrTextToMarkdown(text string) string {
	var out strings.Builder
	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		out.WriteString(strings.Join(para, " "))
		out.WriteString("\n\n")
		para = para[:0]
	}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	return strings.TrimRight(out.String(), "\n")
}

// applyMathTokenization runs the Math Tokenizer over each non-heading,
// non-table, non-code paragraph line of a page's rendered Markdown.
// Lines already inside a fenced code block or a table row are left
// untouched.
func applyMathTokenization(markdown string, cfg Config) string {
	lines := strings.Split(markdown, "\n")
	inCode := false
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			continue
		}
		if inCode || trimmed == "" || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "$$") {
			continue
		}
		lines[i] = TokenizeMath(l, false, cfg)
	}
	return strings.Join(lines, "\n")
}

// ConvertDocument is the top-level Reading-Order Merger (§4.10): it
// invokes the per-page pipeline for every page the GlyphSource reports,
// optionally in parallel (bounded worker pool, per AMBIENT STACK of
// §5), then runs the Cross-Page Normalizer (§4.8) and Garbled-Font
// Heuristic rollup (§4.9) once every page's result is available.
//
// Per §7, only PasswordRequired/PasswordIncorrect/InvalidInput/Cancelled
// are fatal; every other per-page error is recorded in
// DocumentResult.PageFailures and processing continues.
func ConvertDocument(ctx context.Context, src GlyphSource, cfg Config, opts ConvertOptions, ocr OCRAdapter, logger *zap.Logger, parallelism int) (DocumentResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	n, err := src.PageCount(ctx)
	if err != nil {
		return DocumentResult{}, newError(ErrInvalidInput, 0, err)
	}
	if n == 0 {
		return DocumentResult{}, newError(ErrInvalidInput, 0, errEmptyLines)
	}

	rasters, _ := src.(RasterSource)
	outcomes := make([]PageOutcome, n)

	if parallelism <= 1 {
		for i := 0; i < n; i++ {
			if err := checkCancelled(ctx); err != nil {
				return DocumentResult{}, err
			}
			w, h, events, perr := src.Page(ctx, i)
			if perr != nil {
				outcomes[i] = pageErrorOutcome(i, perr)
				continue
			}
			outcomes[i] = processPage(PageInput{Index: i, Width: w, Height: h, Events: events, Raster: rasterFunc(ctx, rasters, i)}, cfg, opts, ocr, logger)
		}
	} else {
		if err := convertPagesParallel(ctx, src, rasters, cfg, opts, ocr, logger, parallelism, n, outcomes); err != nil {
			return DocumentResult{}, err
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return DocumentResult{}, err
	}

	for _, o := range outcomes {
		if o.Failure != nil && (o.Failure.Err.Code == ErrPasswordRequired || o.Failure.Err.Code == ErrPasswordIncorrect) {
			return DocumentResult{}, o.Failure.Err
		}
	}

	return mergeOutcomes(outcomes, cfg, opts), nil
}

// rasterFunc returns a closure that fetches a page's rasterized image on
// demand, only when OCR fallback actually needs it; a nil rasters source
// yields a nil closure, which tryOCRFallback treats as "no raster
// available".
func rasterFunc(ctx context.Context, rasters RasterSource, index int) func() []byte {
	if rasters == nil {
		return nil
	}
	return func() []byte {
		raster, err := rasters.PageRaster(ctx, index)
		if err != nil {
			return nil
		}
		return raster
	}
}

func pageErrorOutcome(index int, err error) PageOutcome {
	docErr, ok := err.(*Error)
	if !ok {
		docErr = newError(ErrInternal, index, err)
	}
	return PageOutcome{Index: index, Failure: &PageFailure{Page: index, Err: docErr}}
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return newError(ErrCancelled, 0, ctx.Err())
	default:
		return nil
	}
}

// convertPagesParallel fans work out over a bounded channel of page
// indices and captures each page's outcome independently, the same
// per-item-error-capture idiom as libaf/reading.FallbackReader and
// docsaf/processor.go's channel-based traversal, rather than an
// errgroup's abort-on-first-error: a single page's failure must never
// drop the rest of the document.
func convertPagesParallel(ctx context.Context, src GlyphSource, rasters RasterSource, cfg Config, opts ConvertOptions, ocr OCRAdapter, logger *zap.Logger, workers, n int, outcomes []PageOutcome) error {
	if workers > n {
		workers = n
	}
	indices := make(chan int)
	var wg sync.WaitGroup
	var cancelled bool
	var mu sync.Mutex

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				if err := checkCancelled(ctx); err != nil {
					mu.Lock()
					cancelled = true
					mu.Unlock()
					continue
				}
				width, height, events, perr := src.Page(ctx, i)
				if perr != nil {
					outcomes[i] = pageErrorOutcome(i, perr)
					continue
				}
				outcomes[i] = processPage(PageInput{Index: i, Width: width, Height: height, Events: events, Raster: rasterFunc(ctx, rasters, i)}, cfg, opts, ocr, logger)
			}
		}()
	}

	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)
	wg.Wait()

	if cancelled {
		return newError(ErrCancelled, 0, ctx.Err())
	}
	return nil
}

// mergeOutcomes concatenates per-page Markdown in page order and runs
// the Cross-Page Normalizer and Garbled-Font rollup, per §4.10's
// document-level step.
func mergeOutcomes(outcomes []PageOutcome, cfg Config, opts ConvertOptions) DocumentResult {
	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].Index < outcomes[b].Index })

	var pages []PageText
	var failures []PageFailure
	garbled := make(map[int]GarbledFontAdvisory)

	for _, o := range outcomes {
		if o.Failure != nil {
			failures = append(failures, *o.Failure)
		}
		if o.Advisory.Recommend {
			garbled[o.Index] = o.Advisory
		}
		pages = append(pages, PageText{PageNumber: o.Index, Lines: o.Lines})
	}

	markdown, stats := NormalizeDocument(pages, cfg, opts)

	return DocumentResult{
		Markdown:     markdown,
		Stats:        stats,
		PageFailures: failures,
		GarbledPages: garbled,
	}
}
