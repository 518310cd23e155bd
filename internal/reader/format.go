package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ParagraphSeparator separates paragraphs in normalized text.
const ParagraphSeparator = "\n\n"

// Kind tags the format of a raw document.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindEPUB Kind = "epub"
)

// RawDocument is an uploaded file held in memory for one extraction.
type RawDocument struct {
	Name string
	Kind Kind // detected from Name when empty
	Data []byte
}

// Result is the outcome of one extraction.
type Result struct {
	Text     string
	Kind     Kind
	Title    string
	Author   string
	Sections []Section
	Units    int // pages or chapters seen
	Warnings []Warning
}

// Format extracts normalized text from one document format.
type Format interface {
	Name() string
	Kind() Kind
	Extensions() []string
	Extract(ctx context.Context, data []byte) (*Result, error)
}

// Options configures an Extractor.
type Options struct {
	ParagraphGap float64
	LineGap      float64
	Workers      int
	Logger       *zap.Logger
}

// Extractor dispatches documents to the registered formats.
type Extractor struct {
	formats []Format
	logger  *zap.Logger
}

// NewExtractor returns an Extractor with the PDF and EPUB formats registered.
func NewExtractor(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{logger: logger}
	e.Register(NewPDFFormat(opts.ParagraphGap, opts.LineGap, logger))
	e.Register(NewEPUBFormat(opts.Workers, logger))
	return e
}

// Register adds a format. Later registrations do not override earlier ones
// for the same extension.
func (e *Extractor) Register(f Format) {
	e.formats = append(e.formats, f)
}

// Detect finds the format for a file name by its extension.
func (e *Extractor) Detect(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range e.formats {
		for _, x := range f.Extensions() {
			if ext == x {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

func (e *Extractor) byKind(k Kind) (Format, error) {
	for _, f := range e.formats {
		if f.Kind() == k {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, k)
}

// Extract turns an in-memory document into normalized text.
func (e *Extractor) Extract(ctx context.Context, doc RawDocument) (*Result, error) {
	var (
		f   Format
		err error
	)
	if doc.Kind != "" {
		f, err = e.byKind(doc.Kind)
	} else {
		f, err = e.Detect(doc.Name)
	}
	if err != nil {
		return nil, err
	}

	res, err := f.Extract(ctx, doc.Data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.Name, err)
	}
	e.logger.Info("document extracted",
		zap.String("name", doc.Name),
		zap.String("format", f.Name()),
		zap.Int("units", res.Units),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("bytes", len(res.Text)))
	return res, nil
}

// ExtractFile extracts the document at path and then removes the file. The
// extracted text is the only artifact kept, so a second call on the same
// path fails. A failed removal is logged, not returned.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	if _, err := e.Detect(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := e.Extract(ctx, RawDocument{Name: filepath.Base(path), Data: data})
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		e.logger.Warn("failed to remove raw upload", zap.String("path", path), zap.Error(err))
	}
	return res, nil
}

// SupportedFormats returns registered format names with their extensions.
func (e *Extractor) SupportedFormats() []string {
	var out []string
	for _, f := range e.formats {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}
