package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultAuthorRules are evaluated in order; the first match wins.
var DefaultAuthorRules = []AuthorRule{
	{Name: "discourse", Extract: discourseAuthor},
	{Name: "github", Extract: githubAuthor},
	{Name: "news", Extract: verbatimAuthor("source_name")},
	{Name: "byline", Extract: verbatimAuthor("byline")},
}

var DefaultEngagementRules = []EngagementRule{
	{Name: "discourse", Extract: discourseEngagement},
	{Name: "votes", Extract: voteEngagement},
}

func discourseAuthor(meta map[string]any) (string, bool) {
	username, ok := metaString(meta, "author_username")
	if !ok {
		return "", false
	}

	username = strings.TrimPrefix(username, "@")
	if name, ok := metaString(meta, "author_name"); ok && name != username {
		return name + " (@" + username + ")", true
	}
	return "@" + username, true
}

func githubAuthor(meta map[string]any) (string, bool) {
	login, ok := metaString(meta, "author")
	if !ok {
		return "", false
	}
	return "@" + strings.TrimPrefix(login, "@"), true
}

func verbatimAuthor(key string) func(map[string]any) (string, bool) {
	return func(meta map[string]any) (string, bool) {
		return metaString(meta, key)
	}
}

func discourseEngagement(meta map[string]any) (*Engagement, bool) {
	e := &Engagement{
		Likes:   metaInt(meta, "like_count"),
		Replies: metaInt(meta, "reply_count"),
		Views:   metaInt(meta, "views"),
	}
	if e.Likes == nil && e.Replies == nil && e.Views == nil {
		return nil, false
	}
	return e, true
}

func voteEngagement(meta map[string]any) (*Engagement, bool) {
	likes := metaInt(meta, "score")
	if likes == nil {
		likes = metaInt(meta, "votes")
	}
	if likes == nil {
		return nil, false
	}
	return &Engagement{Likes: likes, Replies: metaInt(meta, "comment_count")}, true
}

func metaString(meta map[string]any, key string) (string, bool) {
	v, ok := meta[key]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

func metaInt(meta map[string]any, key string) *int {
	v, ok := meta[key]
	if !ok || v == nil {
		return nil
	}

	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return nil
			}
			i = int64(f)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}

	return &n
}
