package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Discourse pages through /latest.json and loads the opening post of each
// new topic.
type Discourse struct {
	Base
	maxPages int
}

func NewDiscourse(base Base, _ Options) (Fetcher, error) {
	return &Discourse{Base: base, maxPages: base.IntOption("max_pages", 3)}, nil
}

type discourseLatest struct {
	Users []struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"users"`
	TopicList struct {
		Topics []discourseTopic `json:"topics"`
	} `json:"topic_list"`
}

type discourseTopic struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	CreatedAt  string   `json:"created_at"`
	LikeCount  int      `json:"like_count"`
	ReplyCount int      `json:"reply_count"`
	PostsCount int      `json:"posts_count"`
	Views      int      `json:"views"`
	Tags       []string `json:"tags"`
	Pinned     bool     `json:"pinned"`
	Posters    []struct {
		UserID      int    `json:"user_id"`
		Description string `json:"description"`
	} `json:"posters"`
}

type discourseThread struct {
	PostStream struct {
		Posts []struct {
			Username string `json:"username"`
			Name     string `json:"name"`
			Cooked   string `json:"cooked"`
		} `json:"posts"`
	} `json:"post_stream"`
}

func (a *Discourse) Fetch(ctx context.Context) ([]FetchResult, error) {
	var results []FetchResult

	for page := 0; page < a.maxPages; page++ {
		pageURL, err := a.JoinURL(fmt.Sprintf("/latest.json?page=%d", page))
		if err != nil {
			return nil, err
		}

		var latest discourseLatest
		if err := a.Client.GetJSON(ctx, pageURL, &latest); err != nil {
			return nil, err
		}

		topics := latest.TopicList.Topics
		if len(topics) == 0 {
			break
		}

		users := make(map[int][2]string, len(latest.Users))
		for _, u := range latest.Users {
			users[u.ID] = [2]string{u.Username, u.Name}
		}

		fresh := 0
		for _, topic := range topics {
			created := parseTime(topic.CreatedAt)
			if !a.IsAfterLastPoll(created) {
				continue
			}
			fresh++

			result, err := a.topic(ctx, topic, created, users)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}

		if fresh == 0 {
			slog.Debug("Discourse page older than watermark, stopping", "source", a.Source.ID, "page", page)
			break
		}
	}

	return results, nil
}

func (a *Discourse) topic(ctx context.Context, topic discourseTopic, created *time.Time, users map[int][2]string) (FetchResult, error) {
	link, err := a.JoinURL(fmt.Sprintf("/t/%s/%d", url.PathEscape(topic.Slug), topic.ID))
	if err != nil {
		return FetchResult{}, err
	}

	meta := map[string]any{
		"topic_id":    topic.ID,
		"like_count":  topic.LikeCount,
		"reply_count": topic.ReplyCount,
		"views":       topic.Views,
	}
	if topic.ReplyCount == 0 && topic.PostsCount > 1 {
		meta["reply_count"] = topic.PostsCount - 1
	}
	if len(topic.Tags) > 0 {
		meta["tags"] = topic.Tags
	}

	// The original poster is listed first.
	if len(topic.Posters) > 0 {
		if u, ok := users[topic.Posters[0].UserID]; ok {
			meta["author_username"] = u[0]
			if u[1] != "" {
				meta["author_name"] = u[1]
			}
		}
	}

	threadURL, err := a.JoinURL(fmt.Sprintf("/t/%d.json", topic.ID))
	if err != nil {
		return FetchResult{}, err
	}

	var thread discourseThread
	if err := a.Client.GetJSON(ctx, threadURL, &thread); err != nil {
		return FetchResult{}, fmt.Errorf("failed to load topic %d: %w", topic.ID, err)
	}

	text := ""
	if posts := thread.PostStream.Posts; len(posts) > 0 {
		text = HTMLToText(posts[0].Cooked)
		if _, ok := meta["author_username"]; !ok && posts[0].Username != "" {
			meta["author_username"] = posts[0].Username
			if posts[0].Name != "" {
				meta["author_name"] = posts[0].Name
			}
		}
	}

	return a.result(link, topic.Title, text, created, meta), nil
}
