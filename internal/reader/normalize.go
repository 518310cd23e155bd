package reader

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// StageName identifies one normalization rule.
type StageName string

const (
	StageCompose          StageName = "compose"
	StageDehyphenate      StageName = "dehyphenate"
	StageTrimLines        StageName = "trim-lines"
	StageCollapseNewlines StageName = "collapse-newlines"
	StageIsolateHeadings  StageName = "isolate-headings"
	StageJoinSoftBreaks   StageName = "join-soft-breaks"
	StageCollapseSpaces   StageName = "collapse-spaces"
	StageTrim             StageName = "trim"
)

// Stage is a single named text transformation.
type Stage struct {
	Name  StageName
	Apply func(string) string
}

// Pipeline is an ordered list of stages. Order matters: joining soft line
// breaks before newlines are collapsed would erase paragraph markers.
type Pipeline []Stage

// Run applies every stage in order.
func (p Pipeline) Run(text string) string {
	for _, s := range p {
		text = s.Apply(text)
	}
	return text
}

// Names lists the stage names in order.
func (p Pipeline) Names() []StageName {
	names := make([]StageName, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}

// hspace is every character unicode.IsSpace accepts except the line breaks,
// so the stages agree with strings.TrimSpace on what blank means.
const hspace = `[\t\v\f\x{85}\p{Z}]`

var (
	lineEdgeRegex     = regexp.MustCompile(`(?m)^` + hspace + `+|` + hspace + `+$`)
	extraNewlineRegex = regexp.MustCompile(`\n{3,}`)
	spaceRunRegex     = regexp.MustCompile(hspace + `{2,}`)

	// headingRegex matches an all-caps chapter marker such as "CHAPTER IV".
	headingRegex        = regexp.MustCompile(`(?m)^((?:CHAPTER|PART|BOOK|VOLUME|SECTION)` + hspace + `+(?:[IVXLCDM]+|[0-9]+)\.?)$`)
	headingKeywordRegex = regexp.MustCompile(`^(?:CHAPTER|PART|BOOK|VOLUME|SECTION)$`)
)

var stages = map[StageName]func(string) string{
	StageCompose:          compose,
	StageDehyphenate:      dehyphenate,
	StageTrimLines:        trimLines,
	StageCollapseNewlines: collapseNewlines,
	StageIsolateHeadings:  isolateHeadings,
	StageJoinSoftBreaks:   joinSoftBreaks,
	StageCollapseSpaces:   collapseSpaces,
	StageTrim:             strings.TrimSpace,
}

// StageFor returns the stage registered under name.
func StageFor(name StageName) (Stage, bool) {
	fn, ok := stages[name]
	if !ok {
		return Stage{}, false
	}
	return Stage{Name: name, Apply: fn}, true
}

func pipelineOf(names ...StageName) Pipeline {
	p := make(Pipeline, 0, len(names))
	for _, n := range names {
		s, _ := StageFor(n)
		p = append(p, s)
	}
	return p
}

// PDFPipeline normalizes text assembled from PDF runs.
func PDFPipeline() Pipeline {
	return pipelineOf(
		StageCompose,
		StageDehyphenate,
		StageTrimLines,
		StageCollapseNewlines,
		StageIsolateHeadings,
		StageJoinSoftBreaks,
		StageCollapseSpaces,
		StageTrim,
	)
}

// EPUBPipeline normalizes flattened EPUB text. Hyphenation and heading rules
// only make sense for PDF line wrapping and are left out.
func EPUBPipeline() Pipeline {
	return pipelineOf(
		StageCompose,
		StageTrimLines,
		StageCollapseNewlines,
		StageCollapseSpaces,
		StageTrim,
	)
}

// Normalize runs the PDF pipeline.
func Normalize(text string) string {
	return PDFPipeline().Run(text)
}

func compose(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}

// dehyphenate drops "-\n" between a letter and a lower-case letter. The
// letter before the hyphen may itself follow an earlier join, as in
// "a-\nb-\nc".
func dehyphenate(s string) string {
	if !strings.Contains(s, "-\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '-' && i+1 < len(s) && s[i+1] == '\n' && joinsHyphen(s, i) {
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func joinsHyphen(s string, i int) bool {
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	next, _ := utf8.DecodeRuneInString(s[i+2:])
	return unicode.IsLetter(prev) && unicode.Is(unicode.Ll, next)
}

func trimLines(s string) string {
	return lineEdgeRegex.ReplaceAllString(s, "")
}

func collapseNewlines(s string) string {
	return extraNewlineRegex.ReplaceAllString(s, "\n\n")
}

func isolateHeadings(s string) string {
	s = headingRegex.ReplaceAllString(s, "\n\n$1\n\n")
	return strings.Trim(collapseNewlines(s), "\n")
}

func collapseSpaces(s string) string {
	return spaceRunRegex.ReplaceAllString(s, " ")
}

// joinSoftBreaks turns a line wrap into a space unless the line ends a
// sentence, or the next line is blank or starts with an upper-case letter.
func joinSoftBreaks(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\n' || keepBreak(s, i) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}

func keepBreak(s string, i int) bool {
	if i == 0 || i == len(s)-1 {
		return true
	}
	switch s[i-1] {
	case '\n', '.', '?', '!':
		return true
	}
	if s[i+1] == '\n' {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i+1:])
	if unicode.IsUpper(r) {
		return true
	}
	// Joining "CHAPTER\n5" would create a heading after headings were isolated.
	start := strings.LastIndexByte(s[:i], '\n') + 1
	return headingKeywordRegex.MatchString(s[start:i])
}

// IsHeading reports whether a paragraph is an isolated chapter marker.
func IsHeading(paragraph string) bool {
	return !strings.Contains(paragraph, "\n") && headingRegex.MatchString(paragraph)
}
