// Package paginate slices normalized text into pages of whole paragraphs.
//
// Pages are recomputed on every request from the text and the page size, so
// a change in page size never leaves stale page state behind.
package paginate

import "strings"

// Separator joins paragraphs in normalized text.
const Separator = "\n\n"

// DefaultPageSize is the number of paragraphs per page.
const DefaultPageSize = 1000

// View is one page of a text.
type View struct {
	Content         string
	Page            int
	TotalPages      int
	TotalParagraphs int
	FirstParagraph  int
}

// Paragraphs splits normalized text into paragraphs. Empty text has none.
func Paragraphs(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, Separator)
}

// TotalPages returns the page count for n paragraphs, at least 1.
func TotalPages(n, pageSize int) int {
	pageSize = sizeOrDefault(pageSize)
	pages := (n + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate returns the requested page. A page below 1 (including 0, meaning
// none was requested) resolves to the first page and a page past the end to
// the last one; out-of-range requests are never an error.
func Paginate(text string, page, pageSize int) View {
	pageSize = sizeOrDefault(pageSize)
	paragraphs := Paragraphs(text)
	total := TotalPages(len(paragraphs), pageSize)
	page = Clamp(page, total)

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(paragraphs))
	start = min(start, end)

	return View{
		Content:         strings.Join(paragraphs[start:end], Separator),
		Page:            page,
		TotalPages:      total,
		TotalParagraphs: len(paragraphs),
		FirstParagraph:  start,
	}
}

// Clamp bounds page to [1, totalPages].
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	return max(1, min(page, totalPages))
}

// PageOf returns the page holding the given paragraph index.
func PageOf(paragraph, pageSize int) int {
	if paragraph < 0 {
		return 1
	}
	return paragraph/sizeOrDefault(pageSize) + 1
}

func sizeOrDefault(pageSize int) int {
	if pageSize < 1 {
		return DefaultPageSize
	}
	return pageSize
}
