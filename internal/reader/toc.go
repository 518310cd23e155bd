package reader

import "strings"

// Section is a table of contents entry pointing at the paragraph where a
// chapter starts in the normalized text.
type Section struct {
	Title     string `json:"title"`
	Paragraph int    `json:"paragraph"`
	Level     int    `json:"level"`
}

// HeadingSections builds sections from isolated heading paragraphs
// ("CHAPTER IV") of normalized text.
func HeadingSections(text string) []Section {
	if text == "" {
		return nil
	}
	var sections []Section
	for i, p := range strings.Split(text, ParagraphSeparator) {
		if IsHeading(p) {
			sections = append(sections, Section{Title: p, Paragraph: i})
		}
	}
	return sections
}
