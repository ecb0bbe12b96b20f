package source

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"time"
)

// NewsAPI queries a NewsAPI-compatible /v2/everything endpoint. Options:
// query, api_key, language, page_size.
type NewsAPI struct {
	Base
	query    string
	language string
	pageSize int
}

func NewNewsAPI(base Base, opts Options) (Fetcher, error) {
	query := base.Option("query", "")
	if query == "" {
		return nil, fmt.Errorf("newsapi source %s needs a query option", base.Source.ID)
	}

	key := cmp.Or(base.Option("api_key", ""), opts.NewsAPIKey)
	if key == "" {
		return nil, fmt.Errorf("newsapi source %s needs an api key", base.Source.ID)
	}
	base.Client = base.Client.WithHeader("X-Api-Key", key)

	return &NewsAPI{
		Base:     base,
		query:    query,
		language: base.Option("language", "en"),
		pageSize: base.IntOption("page_size", 50),
	}, nil
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

func (a *NewsAPI) Fetch(ctx context.Context) ([]FetchResult, error) {
	params := url.Values{}
	params.Set("q", a.query)
	params.Set("language", a.language)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprint(a.pageSize))
	if a.Source.LastPolledAt != nil {
		params.Set("from", a.Source.LastPolledAt.UTC().Format(time.RFC3339))
	}

	endpoint, err := a.JoinURL("/v2/everything?" + params.Encode())
	if err != nil {
		return nil, err
	}

	var resp newsAPIResponse
	if err := a.Client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi error %s: %s", resp.Code, resp.Message)
	}

	results := make([]FetchResult, 0, len(resp.Articles))
	for _, article := range resp.Articles {
		if article.URL == "" {
			continue
		}

		published := parseTime(article.PublishedAt)
		if !a.IsAfterLastPoll(published) {
			continue
		}

		meta := map[string]any{}
		if article.Source.Name != "" {
			meta["source_name"] = article.Source.Name
		}
		if article.Author != "" {
			meta["byline"] = article.Author
		}

		text := HTMLToText(cmp.Or(article.Content, article.Description))
		results = append(results, a.result(article.URL, article.Title, text, published, meta))
	}

	return results, nil
}
