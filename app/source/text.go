package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText flattens an HTML fragment to plain text, one block per line.
func HTMLToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return CleanText(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, pre, blockquote, tr").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	return CleanText(doc.Text())
}

// CleanText normalizes line endings and collapses whitespace within lines.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.Join(paragraphs, "\n")
}
