package reader

import (
	"math"
	"strings"
)

// Default vertical gaps, in the decoder's coordinate units.
const (
	DefaultParagraphGap = 10.0
	DefaultLineGap      = 1.0
)

// TextRun is a positioned string emitted by a PDF content-stream decoder.
type TextRun struct {
	Text string
	Y    float64
}

// Assembler rebuilds paragraph-separated text from runs that arrive in
// reading order. It assumes a single-column, top-to-bottom layout: runs of
// a multi-column page are interleaved by baseline and come out mixed.
//
// TODO: warn when a page's baselines jump back up the page, the usual sign
// of a second column.
type Assembler struct {
	ParagraphGap float64
	LineGap      float64

	lastY   float64
	started bool
	out     strings.Builder
}

// NewAssembler returns an Assembler using the given thresholds. Zero values
// select the defaults.
func NewAssembler(paragraphGap, lineGap float64) *Assembler {
	if paragraphGap <= 0 {
		paragraphGap = DefaultParagraphGap
	}
	if lineGap <= 0 {
		lineGap = DefaultLineGap
	}
	return &Assembler{ParagraphGap: paragraphGap, LineGap: lineGap}
}

// Add appends one run, inserting a paragraph break, a line break or nothing
// depending on its distance from the previous baseline.
func (a *Assembler) Add(run TextRun) {
	if run.Text == "" {
		return
	}
	if a.started {
		gap := math.Abs(a.lastY - run.Y)
		switch {
		case gap > a.ParagraphGap:
			a.out.WriteString("\n\n")
		case gap > a.LineGap:
			a.out.WriteString("\n")
		}
	}
	a.out.WriteString(run.Text)
	a.lastY = run.Y
	a.started = true
}

// AddPage appends every run of a page. The baseline carries over from the
// previous page, so no separator is forced between pages.
func (a *Assembler) AddPage(runs []TextRun) {
	for _, r := range runs {
		a.Add(r)
	}
}

// String returns the text assembled so far.
func (a *Assembler) String() string {
	return a.out.String()
}

// Assemble is a convenience wrapper for a single sequence of runs.
func Assemble(runs []TextRun, paragraphGap, lineGap float64) string {
	a := NewAssembler(paragraphGap, lineGap)
	a.AddPage(runs)
	return a.String()
}
