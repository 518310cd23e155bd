package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PageDecoder yields the text runs of each page of a PDF, in reading order.
// Pages are numbered from 1.
type PageDecoder interface {
	NumPages() int
	Runs(page int) ([]TextRun, error)
}

// PDFFormat implements Format for PDF files.
type PDFFormat struct {
	paragraphGap float64
	lineGap      float64
	logger       *zap.Logger
}

// NewPDFFormat returns a PDF format using the given baseline gap thresholds.
func NewPDFFormat(paragraphGap, lineGap float64, logger *zap.Logger) *PDFFormat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFFormat{paragraphGap: paragraphGap, lineGap: lineGap, logger: logger}
}

func (f *PDFFormat) Name() string         { return "PDF" }
func (f *PDFFormat) Kind() Kind           { return KindPDF }
func (f *PDFFormat) Extensions() []string { return []string{".pdf"} }

// Extract decodes the PDF and assembles its pages.
func (f *PDFFormat) Extract(ctx context.Context, data []byte) (*Result, error) {
	dec, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	res, err := f.ExtractPages(ctx, dec)
	if err != nil {
		return nil, err
	}
	res.Title, res.Author = dec.info()
	return res, nil
}

// ExtractPages assembles every page of dec in order. Pages that fail to
// decode are skipped and reported as warnings.
func (f *PDFFormat) ExtractPages(ctx context.Context, dec PageDecoder) (*Result, error) {
	asm := NewAssembler(f.paragraphGap, f.lineGap)
	res := &Result{Kind: KindPDF, Units: dec.NumPages()}

	produced := 0
	for i := 1; i <= dec.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runs, err := dec.Runs(i)
		if err != nil {
			derr := &DecodeError{Unit: "page", Index: i, Err: err}
			f.logger.Warn("skipping undecodable page", zap.Int("page", i), zap.Error(err))
			res.Warnings = append(res.Warnings, warningOf(derr))
			continue
		}
		before := len(asm.String())
		asm.AddPage(runs)
		if len(asm.String()) > before {
			produced++
		}
	}
	if produced == 0 {
		return nil, ErrEmptyExtraction
	}

	res.Text = PDFPipeline().Run(asm.String())
	if res.Text == "" {
		return nil, ErrEmptyExtraction
	}
	res.Sections = HeadingSections(res.Text)
	return res, nil
}

type pdfDecoder struct {
	r *pdf.Reader
}

func openPDF(data []byte) (dec *pdfDecoder, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfDecoder{r: r}, nil
}

func (d *pdfDecoder) NumPages() int {
	return d.r.NumPage()
}

// Runs converts the page's positioned glyphs into runs. The decoder panics on
// some malformed content streams; that is reported as an error for the page.
func (d *pdfDecoder) Runs(page int) (runs []TextRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("malformed content: %v", r)
		}
	}()
	p := d.r.Page(page)
	if p.V.IsNull() {
		return nil, errors.New("page object missing")
	}
	content := p.Content()
	runs = make([]TextRun, 0, len(content.Text))
	for _, t := range content.Text {
		runs = append(runs, TextRun{Text: t.S, Y: t.Y})
	}
	return runs, nil
}

func (d *pdfDecoder) info() (title, author string) {
	defer func() {
		if r := recover(); r != nil {
			title, author = "", ""
		}
	}()
	info := d.r.Trailer().Key("Info")
	if info.IsNull() {
		return "", ""
	}
	return info.Key("Title").Text(), info.Key("Author").Text()
}
