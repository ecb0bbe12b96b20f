package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// HTML scrapes a listing page for article links and extracts readable text
// from each linked page. Options: link_selector, max_links.
type HTML struct {
	Base
	selector string
	maxLinks int
}

func NewHTML(base Base, _ Options) (Fetcher, error) {
	return &HTML{
		Base:     base,
		selector: base.Option("link_selector", "article a[href]"),
		maxLinks: base.IntOption("max_links", 20),
	}, nil
}

func (a *HTML) Fetch(ctx context.Context) ([]FetchResult, error) {
	listing, err := a.Client.GetBytes(ctx, a.Source.BaseURL)
	if err != nil {
		return nil, err
	}

	links, err := a.links(listing)
	if err != nil {
		return nil, err
	}

	results := make([]FetchResult, 0, len(links))
	for _, link := range links {
		result, ok, err := a.page(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Failed to extract page", "source", a.Source.ID, "url", link, "error", err)
			continue
		}
		if ok {
			results = append(results, result)
		}
	}

	return results, nil
}

func (a *HTML) links(listing []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(listing))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(a.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || strings.HasPrefix(strings.TrimSpace(href), "#") {
			return true
		}
		link, err := a.JoinURL(href)
		if err != nil || seen[link] {
			return true
		}
		seen[link] = true
		links = append(links, link)
		return len(links) < a.maxLinks
	})

	return links, nil
}

func (a *HTML) page(ctx context.Context, link string) (FetchResult, bool, error) {
	body, err := a.Client.GetBytes(ctx, link)
	if err != nil {
		return FetchResult{}, false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return FetchResult{}, false, fmt.Errorf("failed to parse page: %w", err)
	}

	published := parseTime(doc.Find(`meta[property="article:published_time"]`).AttrOr("content", ""))
	if !a.IsAfterLastPoll(published) {
		return FetchResult{}, false, nil
	}

	title := cmp.Or(
		strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", "")),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)

	text, err := readableText(body, link)
	if err != nil {
		return FetchResult{}, false, err
	}

	meta := map[string]any{}
	if author := strings.TrimSpace(doc.Find(`meta[name="author"]`).AttrOr("content", "")); author != "" {
		meta["byline"] = author
	}

	return a.result(link, title, text, published, meta), true, nil
}

func readableText(body []byte, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	return cmp.Or(CleanText(rendered.String()), CleanText(article.Excerpt())), nil
}
