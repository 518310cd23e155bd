package reader

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// ncx is the subset of toc.ncx needed to name chapters.
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	Label    navLabel   `xml:"navLabel"`
	Content  navContent `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// tocEntry is a chapter's NCX label and its nesting depth, 0 for top-level
// navPoints.
type tocEntry struct {
	Title string
	Level int
}

// tocTitles parses the NCX and returns a map of href to entry. The first
// entry pointing into a file wins, so fragments within a chapter don't
// rename it. Children of an unlabeled navPoint take its place in the tree.
func tocTitles(book *epub.Rootfile) map[string]tocEntry {
	result := make(map[string]tocEntry)

	data, err := readNCX(book)
	if err != nil {
		return result
	}
	var toc ncx
	if err := xml.Unmarshal(data, &toc); err != nil {
		return result
	}

	var walk func(points []navPoint, depth int)
	walk = func(points []navPoint, depth int) {
		for _, np := range points {
			title := strings.TrimSpace(np.Label.Text)
			if title == "" {
				walk(np.Children, depth)
				continue
			}
			href := stripFragment(np.Content.Src)
			for _, key := range []string{href, path.Base(href)} {
				if _, exists := result[key]; !exists {
					result[key] = tocEntry{Title: title, Level: depth}
				}
			}
			walk(np.Children, depth+1)
		}
	}
	walk(toc.NavMap.NavPoints, 0)

	return result
}

func lookupTitle(titles map[string]tocEntry, href string) (tocEntry, bool) {
	if e, ok := titles[href]; ok {
		return e, true
	}
	e, ok := titles[path.Base(href)]
	return e, ok
}

func readNCX(book *epub.Rootfile) ([]byte, error) {
	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		if item.MediaType != "application/x-dtbncx+xml" && !strings.HasSuffix(strings.ToLower(item.HREF), ".ncx") {
			continue
		}
		rc, err := item.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("no NCX file found in EPUB")
}

func stripFragment(href string) string {
	if idx := strings.Index(href, "#"); idx != -1 {
		return href[:idx]
	}
	return href
}
