package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Reddit reads /r/{subreddit}/new.json. Options: subreddit, limit.
type Reddit struct {
	Base
	subreddit string
	limit     int
}

func NewReddit(base Base, _ Options) (Fetcher, error) {
	sub := strings.TrimPrefix(base.Option("subreddit", ""), "r/")
	if sub == "" {
		return nil, fmt.Errorf("reddit source %s needs a subreddit option", base.Source.ID)
	}

	return &Reddit{Base: base, subreddit: sub, limit: base.IntOption("limit", 50)}, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Permalink   string  `json:"permalink"`
				URL         string  `json:"url"`
				Author      string  `json:"author"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				Stickied    bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *Reddit) Fetch(ctx context.Context) ([]FetchResult, error) {
	endpoint, err := a.JoinURL(fmt.Sprintf("/r/%s/new.json?limit=%d", url.PathEscape(a.subreddit), a.limit))
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := a.Client.GetJSON(ctx, endpoint, &listing); err != nil {
		return nil, err
	}

	results := make([]FetchResult, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Permalink == "" {
			continue
		}

		published := timeFromUnix(post.CreatedUTC)
		if !a.IsAfterLastPoll(published) {
			continue
		}

		link, err := a.JoinURL(post.Permalink)
		if err != nil {
			continue
		}

		meta := map[string]any{
			"subreddit":     a.subreddit,
			"score":         post.Score,
			"comment_count": post.NumComments,
		}
		if post.Author != "" {
			meta["byline"] = "u/" + post.Author
		}
		if post.URL != "" && post.URL != link {
			meta["external_url"] = post.URL
		}

		results = append(results, a.result(link, post.Title, post.Selftext, published, meta))
	}

	return results, nil
}
