package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// RSS reads an RSS, Atom or JSON feed at the source base URL.
type RSS struct {
	Base
	parser *gofeed.Parser
}

func NewRSS(base Base, _ Options) (Fetcher, error) {
	return &RSS{Base: base, parser: gofeed.NewParser()}, nil
}

func (a *RSS) Fetch(ctx context.Context) ([]FetchResult, error) {
	data, err := a.Client.GetBytes(ctx, a.Source.BaseURL)
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	results := make([]FetchResult, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published != nil {
			t := published.UTC()
			published = &t
		}
		if !a.IsAfterLastPoll(published) {
			continue
		}

		ref := cmp.Or(strings.TrimSpace(item.Link), strings.TrimSpace(item.GUID))
		if ref == "" {
			continue
		}
		link, err := a.JoinURL(ref)
		if err != nil {
			continue
		}

		meta := map[string]any{}
		if item.GUID != "" {
			meta["guid"] = item.GUID
		}
		if byline := feedAuthor(item); byline != "" {
			meta["byline"] = byline
		}
		if len(item.Categories) > 0 {
			meta["categories"] = item.Categories
		}

		text := HTMLToText(cmp.Or(item.Content, item.Description))
		results = append(results, a.result(link, item.Title, text, published, meta))
	}

	return results, nil
}

func feedAuthor(item *gofeed.Item) string {
	var names []string
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			names = append(names, strings.TrimSpace(author.Name))
		}
	}
	if len(names) == 0 && item.Author != nil {
		names = append(names, strings.TrimSpace(item.Author.Name))
	}
	return strings.Join(names, ", ")
}
