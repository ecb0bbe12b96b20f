package feed

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
)

// Channel describes the RSS channel wrapping a list of cards.
type Channel struct {
	Title       string
	Link        string
	Description string
	SelfPath    string
}

type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

// Run renders cards as an RSS 2.0 document. Cards are expected newest first.
func (g *Generator) Run(channel Channel, cards []database.Card) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", channel.Description, 4)

	if g.baseURL != "" && channel.SelfPath != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(g.baseURL+channel.SelfPath)))
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(cards) > 0 {
		lastBuildDate = cards[0].PublishedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Eth-Comb/%s", g.version), 4)

	for _, card := range cards {
		g.writeItem(&buf, card)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, card database.Card) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	buf.WriteString(html.EscapeString(card.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", card.Headline, 6)
	g.writeElement(buf, "link", card.URL, 6)
	g.writeElement(buf, "description", card.Summary, 6)
	g.writeElement(buf, "pubDate", card.PublishedAt.Format(time.RFC1123Z), 6)

	if card.Author != nil {
		g.writeElement(buf, "author", *card.Author, 6)
	}

	g.writeElement(buf, "category", string(card.Category), 6)
	g.writeElement(buf, "source", card.SourceID, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	buf.WriteString(html.EscapeString(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
