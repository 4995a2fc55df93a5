package docmd

import "sort"

// Column is a vertical partition of a page holding an ordered run of
// Blocks. Lifetime is one page.
type Column struct {
	X, Width float64
	Blocks   []Block
	Lines    []Line // lines assigned to this column, pre-grouping
}

// PageLayout is the per-page output of the Column Detector.
type PageLayout struct {
	Columns       []Column
	IsMultiColumn bool
	PageWidth     float64
	PageHeight    float64
}

// DetectColumns partitions a page's Lines into 1..N columns using a
// density histogram over line x-spans, per §4.2. Grounded on
// docsaf/pdf_layout.go's detectColumns gap-histogram approach.
func DetectColumns(lines []Line, pageWidth, pageHeight float64, cfg Config) (PageLayout, error) {
	if len(lines) == 0 {
		return PageLayout{}, newError(ErrDegenerateLayout, 0, errEmptyLines)
	}

	bins := cfg.ColumnHistogramBins
	if bins <= 0 {
		bins = 50
	}
	binWidth := pageWidth / float64(bins)
	counts := make([]int, bins)

	binIndex := func(x float64) int {
		if binWidth <= 0 {
			return 0
		}
		i := int(x / binWidth)
		if i < 0 {
			i = 0
		}
		if i >= bins {
			i = bins - 1
		}
		return i
	}

	for _, ln := range lines {
		start, end := binIndex(ln.MinX), binIndex(ln.MaxX)
		for i := start; i <= end; i++ {
			counts[i]++
		}
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	avgDensity := float64(total) / float64(bins)

	isGap := make([]bool, bins)
	for i, c := range counts {
		isGap[i] = float64(c) < cfg.ColumnGapDensityRatio*avgDensity
	}

	minGapWidth := cfg.ColumnGapMinWidthRatio * pageWidth

	type boundary struct{ start, end float64 }
	var boundaries []boundary
	i := 0
	for i < bins {
		if !isGap[i] {
			i++
			continue
		}
		j := i
		for j < bins && isGap[j] {
			j++
		}
		gapStart := float64(i) * binWidth
		gapEnd := float64(j) * binWidth
		if gapEnd-gapStart > minGapWidth {
			boundaries = append(boundaries, boundary{gapStart, gapEnd})
		}
		i = j
	}

	// Partition [0, pageWidth] using the gap boundaries as column splits.
	var edges []float64
	edges = append(edges, 0)
	for _, b := range boundaries {
		edges = append(edges, (b.start+b.end)/2)
	}
	edges = append(edges, pageWidth)

	var columns []Column
	for k := 0; k+1 < len(edges); k++ {
		x0, x1 := edges[k], edges[k+1]
		width := x1 - x0
		if width < cfg.ColumnMinWidthRatio*pageWidth {
			continue
		}
		var colLines []Line
		for _, ln := range lines {
			center := (ln.MinX + ln.MaxX) / 2
			if center >= x0 && center < x1 {
				colLines = append(colLines, ln)
			}
		}
		if len(colLines) == 0 {
			continue
		}
		columns = append(columns, Column{X: x0, Width: width, Lines: colLines})
	}

	if len(columns) == 0 {
		columns = []Column{{X: 0, Width: pageWidth, Lines: lines}}
	}

	sort.Slice(columns, func(a, b int) bool { return columns[a].X < columns[b].X })

	for ci := range columns {
		sort.SliceStable(columns[ci].Lines, func(a, b int) bool {
			return columns[ci].Lines[a].Y < columns[ci].Lines[b].Y
		})
	}

	return PageLayout{
		Columns:       columns,
		IsMultiColumn: len(columns) > 1,
		PageWidth:     pageWidth,
		PageHeight:    pageHeight,
	}, nil
}
