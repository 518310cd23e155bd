package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent chapter retrieval.
const DefaultWorkers = 4

// EPUBFormat implements Format for EPUB files.
type EPUBFormat struct {
	workers int
	logger  *zap.Logger
}

// NewEPUBFormat returns an EPUB format reading up to workers chapters at once.
func NewEPUBFormat(workers int, logger *zap.Logger) *EPUBFormat {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EPUBFormat{workers: workers, logger: logger}
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Kind() Kind           { return KindEPUB }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Chapter is one spine entry whose markup can be opened on demand.
type Chapter struct {
	Href string
	Open func() (io.ReadCloser, error)
}

// ChapterResult holds either the paragraphs of a chapter or the reason it
// could not be read. Failed chapters never abort the whole book.
type ChapterResult struct {
	Index      int
	Href       string
	Paragraphs []string
	Err        error
}

// Extract flattens every spine chapter in order into one text.
func (f *EPUBFormat) Extract(ctx context.Context, data []byte) (*Result, error) {
	book, err := openEPUB(data)
	if err != nil {
		return nil, err
	}

	chapters := spineChapters(book)
	results := FlattenChapters(ctx, chapters, f.workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Kind:   KindEPUB,
		Title:  strings.TrimSpace(book.Metadata.Title),
		Author: strings.TrimSpace(book.Metadata.Creator),
		Units:  len(chapters),
	}
	titles := tocTitles(book)

	var parts []string
	paragraph := 0
	for _, cr := range results {
		if cr.Err != nil {
			derr := &DecodeError{Unit: "chapter", Index: cr.Index + 1, Ref: cr.Href, Err: cr.Err}
			f.logger.Warn("skipping unreadable chapter",
				zap.Int("chapter", cr.Index+1),
				zap.String("href", cr.Href),
				zap.Error(cr.Err))
			res.Warnings = append(res.Warnings, warningOf(derr))
			continue
		}
		if len(cr.Paragraphs) == 0 {
			continue
		}
		if entry, ok := lookupTitle(titles, cr.Href); ok {
			res.Sections = append(res.Sections, Section{Title: entry.Title, Paragraph: paragraph, Level: entry.Level})
		} else if len(titles) == 0 {
			res.Sections = append(res.Sections, Section{Title: fmt.Sprintf("Section %d", cr.Index+1), Paragraph: paragraph})
		}
		parts = append(parts, strings.Join(cr.Paragraphs, ParagraphSeparator))
		paragraph += len(cr.Paragraphs)
	}
	if len(parts) == 0 {
		return nil, ErrEmptyExtraction
	}

	res.Text = EPUBPipeline().Run(strings.Join(parts, ParagraphSeparator))
	return res, nil
}

func openEPUB(data []byte) (book *epub.Rootfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			book, err = nil, fmt.Errorf("open epub: %v", r)
		}
	}()
	rd, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	if len(rd.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	return rd.Rootfiles[0], nil
}

func spineChapters(book *epub.Rootfile) []Chapter {
	chapters := make([]Chapter, 0, len(book.Spine.Itemrefs))
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			idref := ref.IDREF
			chapters = append(chapters, Chapter{
				Href: idref,
				Open: func() (io.ReadCloser, error) {
					return nil, fmt.Errorf("spine item %q not in manifest", idref)
				},
			})
			continue
		}
		item := ref.Item
		chapters = append(chapters, Chapter{Href: item.HREF, Open: item.Open})
	}
	return chapters
}

// FlattenChapters reads chapters concurrently and returns one result per
// chapter in the original order, whatever order they finished in.
func FlattenChapters(ctx context.Context, chapters []Chapter, workers int) []ChapterResult {
	if workers < 1 {
		workers = DefaultWorkers
	}
	results := make([]ChapterResult, len(chapters))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, ch := range chapters {
		g.Go(func() error {
			results[i] = flattenChapter(ctx, i, ch)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func flattenChapter(ctx context.Context, index int, ch Chapter) (res ChapterResult) {
	res = ChapterResult{Index: index, Href: ch.Href}
	defer func() {
		if r := recover(); r != nil {
			res.Paragraphs, res.Err = nil, fmt.Errorf("chapter panicked: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if ch.Open == nil {
		res.Err = errors.New("chapter has no content")
		return res
	}
	rc, err := ch.Open()
	if err != nil {
		res.Err = err
		return res
	}
	defer rc.Close()
	res.Paragraphs, res.Err = FlattenHTML(rc)
	return res
}

var blankLineRegex = regexp.MustCompile(`\n[ \t\r]*\n`)

var skippedTags = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Hr: true,
	atom.Body: true, atom.Figcaption: true, atom.Dt: true, atom.Dd: true,
}

// FlattenHTML strips markup from a chapter and returns its paragraphs.
// Paragraphs break at block elements and at blank lines inside text; the
// whitespace within a paragraph is collapsed to single spaces.
func FlattenHTML(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)

	var (
		paragraphs []string
		cur        strings.Builder
		skip       int
	)
	flush := func() {
		if t := strings.Join(strings.Fields(cur.String()), " "); t != "" {
			paragraphs = append(paragraphs, t)
		}
		cur.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			flush()
			return paragraphs, nil

		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			if skippedTags[tag] {
				switch {
				case tt == html.StartTagToken:
					skip++
				case tt == html.EndTagToken && skip > 0:
					skip--
				}
				continue
			}
			if skip > 0 {
				continue
			}
			switch {
			case blockTags[tag]:
				flush()
			case tag == atom.Br:
				cur.WriteByte(' ')
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			for i, piece := range blankLineRegex.Split(string(z.Text()), -1) {
				if i > 0 {
					flush()
				}
				cur.WriteString(piece)
			}
		}
	}
}
