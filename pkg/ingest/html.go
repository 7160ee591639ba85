package ingest

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mainContentSelectors are tried in order before falling back to body.
var mainContentSelectors = []string{"main", "article", ".content", "#content"}

// extractHTML pulls the readable text out of an HTML file: scripts and
// styles dropped, the most content-like region preferred, whitespace
// collapsed.
func extractHTML(path string) (title, text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript").Remove()

	var content string
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			content = sel.First().Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	return title, strings.Join(strings.Fields(content), " "), nil
}
