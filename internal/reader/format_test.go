package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractFile(t *testing.T) {
	tmpDir := t.TempDir()
	e := NewExtractor(Options{})

	t.Run("epub is extracted and consumed", func(t *testing.T) {
		path := filepath.Join(tmpDir, "book.EPUB")
		data := newTestEPUB(t, "Title", "Author",
			epubChapter{id: "c1", href: "ch1.xhtml", title: "One", body: xhtml(`<p>Hello there.</p>`)})
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		res, err := e.ExtractFile(context.Background(), path)
		if err != nil {
			t.Fatalf("ExtractFile: %v", err)
		}
		if res.Text != "Hello there." {
			t.Errorf("got %q, want %q", res.Text, "Hello there.")
		}
		if res.Kind != KindEPUB {
			t.Errorf("Kind = %q", res.Kind)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("raw file should be removed, stat err = %v", err)
		}

		// The raw bytes do not survive, so a second call fails.
		if _, err := e.ExtractFile(context.Background(), path); err == nil {
			t.Error("expected error on second extraction")
		}
	})

	t.Run("pdf is extracted", func(t *testing.T) {
		path := filepath.Join(tmpDir, "doc.pdf")
		if err := os.WriteFile(path, newTestPDF(t, pdfLine{100, "Hello World"}), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		res, err := e.ExtractFile(context.Background(), path)
		if err != nil {
			t.Fatalf("ExtractFile: %v", err)
		}
		if res.Kind != KindPDF || res.Text == "" {
			t.Errorf("got kind %q text %q", res.Kind, res.Text)
		}
	})

	t.Run("unsupported extension fails before reading", func(t *testing.T) {
		_, err := e.ExtractFile(context.Background(), filepath.Join(tmpDir, "nonexistent.txt"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("got %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("failed extraction keeps the raw file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "broken.epub")
		if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := e.ExtractFile(context.Background(), path); err == nil {
			t.Fatal("expected error")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("raw file should remain: %v", err)
		}
	})
}

func TestExtractByKind(t *testing.T) {
	e := NewExtractor(Options{})
	data := newTestEPUB(t, "T", "A", epubChapter{id: "c1", href: "c.xhtml", body: xhtml(`<p>x</p>`)})

	res, err := e.Extract(context.Background(), RawDocument{Name: "upload.bin", Kind: KindEPUB, Data: data})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "x" {
		t.Errorf("got %q", res.Text)
	}

	if _, err := e.Extract(context.Background(), RawDocument{Name: "a.mobi"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
	if _, err := e.Extract(context.Background(), RawDocument{Kind: "mobi"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestDetect(t *testing.T) {
	e := NewExtractor(Options{})
	for name, want := range map[string]Kind{"a.pdf": KindPDF, "B.PDF": KindPDF, "c.epub": KindEPUB} {
		f, err := e.Detect(name)
		if err != nil {
			t.Errorf("Detect(%q): %v", name, err)
			continue
		}
		if f.Kind() != want {
			t.Errorf("Detect(%q) = %q, want %q", name, f.Kind(), want)
		}
	}
	for _, name := range []string{"a.txt", "noext", "a.pdf.zip"} {
		if _, err := e.Detect(name); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Detect(%q) = %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := NewExtractor(Options{}).SupportedFormats()
	want := map[string]bool{"PDF (.pdf)": false, "EPUB (.epub)": false}
	for _, f := range formats {
		want[f] = true
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("%s not registered: %v", f, formats)
		}
	}
}
