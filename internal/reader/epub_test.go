package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

type epubChapter struct {
	id, href, title, body string
	missing             bool // listed in the manifest but absent from the archive
	nested              bool // navPoint goes inside the previous top-level one
}

// newTestEPUB builds a minimal EPUB 2 archive in memory.
func newTestEPUB(t *testing.T, title, author string, chapters ...epubChapter) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	write("mimetype", "application/epub+zip")
	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine, navPoints strings.Builder
	manifest.WriteString(`<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>`)
	openPoint := false
	for i, ch := range chapters {
		fmt.Fprintf(&manifest, `<item id="%s" href="%s" media-type="application/xhtml+xml"/>`, ch.id, ch.href)
		fmt.Fprintf(&spine, `<itemref idref="%s"/>`, ch.id)
		if ch.title != "" {
			if openPoint && !ch.nested {
				navPoints.WriteString(`</navPoint>`)
				openPoint = false
			}
			fmt.Fprintf(&navPoints, `<navPoint id="np%d" playOrder="%d"><navLabel><text>%s</text></navLabel><content src="%s"/>`,
				i+1, i+1, ch.title, ch.href)
			if ch.nested {
				navPoints.WriteString(`</navPoint>`)
			} else {
				openPoint = true
			}
		}
		if !ch.missing {
			write("OEBPS/"+ch.href, ch.body)
		}
	}

	if openPoint {
		navPoints.WriteString(`</navPoint>`)
	}

	write("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
  </metadata>
  <manifest>%s</manifest>
  <spine toc="ncx">%s</spine>
</package>`, title, author, manifest.String(), spine.String()))

	write("OEBPS/toc.ncx", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>%s</navMap>
</ncx>`, navPoints.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func xhtml(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>ignored</title><style>p { margin: 0 }</style></head>
<body>` + body + `</body></html>`
}

func TestFlattenHTML(t *testing.T) {
	htmlContent := `
	<html>
		<head><title>Test</title></head>
		<body>
			<h1>Chapter 1</h1>
			<p>This is the <b>first</b> paragraph.</p>
			<p>
				This is the second paragraph
				with a newline.
			</p>
			<div>Some <span>nested</span> text &amp; an entity.</div>
			<script>var x = 1;</script>
			Loose text

			split by a blank line.
		</body>
	</html>
	`

	expected := []string{
		"Chapter 1",
		"This is the first paragraph.",
		"This is the second paragraph with a newline.",
		"Some nested text & an entity.",
		"Loose text",
		"split by a blank line.",
	}

	got, err := FlattenHTML(strings.NewReader(htmlContent))
	if err != nil {
		t.Fatalf("FlattenHTML: %v", err)
	}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d paragraphs, got %d: %q", len(expected), len(got), got)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("Paragraph %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestFlattenHTMLReadError(t *testing.T) {
	if _, err := FlattenHTML(failingReader{}); err == nil {
		t.Error("expected error from failing reader")
	}
}

func chapterOf(body string, delay time.Duration) Chapter {
	return Chapter{
		Href: "x.xhtml",
		Open: func() (io.ReadCloser, error) {
			time.Sleep(delay)
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestFlattenChaptersKeepsSpineOrder(t *testing.T) {
	chapters := []Chapter{
		chapterOf("<p>one</p>", 30*time.Millisecond),
		chapterOf("<p>two</p>", 0),
		{Href: "bad.xhtml", Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") }},
		chapterOf("<p>four</p>", 10*time.Millisecond),
		{Href: "nil.xhtml"},
	}

	results := FlattenChapters(context.Background(), chapters, 3)
	if len(results) != len(chapters) {
		t.Fatalf("got %d results, want %d", len(results), len(chapters))
	}

	want := [][]string{{"one"}, {"two"}, nil, {"four"}, nil}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if want[i] == nil {
			if r.Err == nil {
				t.Errorf("result %d: expected error", i)
			}
			continue
		}
		if r.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, r.Err)
			continue
		}
		if strings.Join(r.Paragraphs, "|") != strings.Join(want[i], "|") {
			t.Errorf("result %d: got %q, want %q", i, r.Paragraphs, want[i])
		}
	}
}

func TestEPUBExtract(t *testing.T) {
	data := newTestEPUB(t, "A Test Book", "Jane Doe",
		epubChapter{id: "c1", href: "ch1.xhtml", title: "Beginnings", body: xhtml(`<h2>One</h2><p>First   para.</p><p>Second para.</p>`)},
		epubChapter{id: "c2", href: "ch2.xhtml", title: "Middles", body: xhtml(`<p>Third para.</p>`)},
	)

	res, err := NewEPUBFormat(2, nil).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := "One\n\nFirst para.\n\nSecond para.\n\nThird para."
	if res.Text != want {
		t.Errorf("got %q, want %q", res.Text, want)
	}
	if res.Title != "A Test Book" || res.Author != "Jane Doe" {
		t.Errorf("metadata = %q / %q", res.Title, res.Author)
	}
	if res.Units != 2 {
		t.Errorf("Units = %d, want 2", res.Units)
	}
	wantSections := []Section{{Title: "Beginnings", Paragraph: 0}, {Title: "Middles", Paragraph: 3}}
	if fmt.Sprint(res.Sections) != fmt.Sprint(wantSections) {
		t.Errorf("Sections = %v, want %v", res.Sections, wantSections)
	}
}

func TestEPUBExtractNestedSections(t *testing.T) {
	data := newTestEPUB(t, "Nested", "Author",
		epubChapter{id: "p1", href: "part1.xhtml", title: "Part One", body: xhtml(`<p>Part intro.</p>`)},
		epubChapter{id: "c1", href: "ch1.xhtml", title: "Chapter One", nested: true, body: xhtml(`<p>First.</p>`)},
		epubChapter{id: "c2", href: "ch2.xhtml", title: "Chapter Two", nested: true, body: xhtml(`<p>Second.</p>`)},
		epubChapter{id: "p2", href: "part2.xhtml", title: "Part Two", body: xhtml(`<p>Later.</p>`)},
	)

	res, err := NewEPUBFormat(2, nil).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []Section{
		{Title: "Part One", Paragraph: 0, Level: 0},
		{Title: "Chapter One", Paragraph: 1, Level: 1},
		{Title: "Chapter Two", Paragraph: 2, Level: 1},
		{Title: "Part Two", Paragraph: 3, Level: 0},
	}
	if fmt.Sprint(res.Sections) != fmt.Sprint(want) {
		t.Errorf("Sections = %v, want %v", res.Sections, want)
	}
}

func TestEPUBMissingChapterIsSkipped(t *testing.T) {
	data := newTestEPUB(t, "Partial", "Anon",
		epubChapter{id: "c1", href: "ch1.xhtml", body: xhtml(`<p>Kept one.</p>`)},
		epubChapter{id: "c2", href: "ch2.xhtml", missing: true},
		epubChapter{id: "c3", href: "ch3.xhtml", body: xhtml(`<p>Kept three.</p>`)},
	)

	res, err := NewEPUBFormat(0, nil).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Kept one.\n\nKept three." {
		t.Errorf("got %q", res.Text)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Unit != "chapter" || res.Warnings[0].Index != 2 {
		t.Errorf("Warnings = %+v", res.Warnings)
	}
	// No NCX titles at all: sections fall back to spine positions.
	if len(res.Sections) != 2 || res.Sections[1].Title != "Section 3" || res.Sections[1].Paragraph != 1 {
		t.Errorf("Sections = %+v", res.Sections)
	}
}

func TestEPUBAllChaptersEmpty(t *testing.T) {
	data := newTestEPUB(t, "Blank", "Anon",
		epubChapter{id: "c1", href: "ch1.xhtml", body: xhtml(``)},
		epubChapter{id: "c2", href: "ch2.xhtml", missing: true},
	)

	_, err := NewEPUBFormat(0, nil).Extract(context.Background(), data)
	if !errors.Is(err, ErrEmptyExtraction) {
		t.Errorf("got %v, want ErrEmptyExtraction", err)
	}
}

func TestEPUBGarbage(t *testing.T) {
	if _, err := NewEPUBFormat(0, nil).Extract(context.Background(), []byte("PK not really")); err == nil {
		t.Error("expected error")
	}
}
