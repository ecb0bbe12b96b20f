package source

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	githubReleases = "releases"
	githubPulls    = "pulls"
	githubIssues   = "issues"
)

// GitHub lists releases, pull requests or issues of one repository through
// the REST API. Options: repo (owner/name), kind, per_page, max_pages.
type GitHub struct {
	Base
	repo     string
	kind     string
	perPage  int
	maxPages int
}

func NewGitHub(base Base, opts Options) (Fetcher, error) {
	repo := strings.Trim(base.Option("repo", ""), "/")
	if strings.Count(repo, "/") != 1 {
		return nil, fmt.Errorf("github source %s needs a repo option of the form owner/name", base.Source.ID)
	}

	kind := base.Option("kind", githubReleases)
	switch kind {
	case githubReleases, githubPulls, githubIssues:
	default:
		return nil, fmt.Errorf("github source %s has unsupported kind %q", base.Source.ID, kind)
	}

	base.Client = base.Client.WithHeader("X-GitHub-Api-Version", "2022-11-28")
	if token := cmp.Or(base.Option("token", ""), opts.GitHubToken); token != "" {
		base.Client = base.Client.WithHeader("Authorization", "Bearer "+token)
	}

	return &GitHub{
		Base:     base,
		repo:     repo,
		kind:     kind,
		perPage:  base.IntOption("per_page", 30),
		maxPages: base.IntOption("max_pages", 2),
	}, nil
}

type githubUser struct {
	Login string `json:"login"`
}

type githubEntry struct {
	HTMLURL     string      `json:"html_url"`
	Name        string      `json:"name"`
	TagName     string      `json:"tag_name"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Draft       bool        `json:"draft"`
	Prerelease  bool        `json:"prerelease"`
	PublishedAt string      `json:"published_at"`
	CreatedAt   string      `json:"created_at"`
	Author      *githubUser `json:"author"`
	User        *githubUser `json:"user"`
	Comments    *int        `json:"comments"`
	Number      int         `json:"number"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

func (a *GitHub) Fetch(ctx context.Context) ([]FetchResult, error) {
	var results []FetchResult

	for page := 1; page <= a.maxPages; page++ {
		pageURL, err := a.JoinURL(a.pagePath(page))
		if err != nil {
			return nil, err
		}

		var entries []githubEntry
		if err := a.Client.GetJSON(ctx, pageURL, &entries); err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}

		fresh := 0
		for _, e := range entries {
			if e.Draft || (a.kind == githubIssues && e.PullRequest != nil) {
				continue
			}

			published := parseTime(cmp.Or(e.PublishedAt, e.CreatedAt))
			if !a.IsAfterLastPoll(published) {
				continue
			}
			fresh++

			results = append(results, a.entry(e, published))
		}

		if fresh == 0 || len(entries) < a.perPage {
			slog.Debug("GitHub pagination finished", "source", a.Source.ID, "page", page)
			break
		}
	}

	return results, nil
}

func (a *GitHub) pagePath(page int) string {
	path := fmt.Sprintf("/repos/%s/%s?per_page=%d&page=%d", a.repo, a.kind, a.perPage, page)
	if a.kind != githubReleases {
		path += "&state=all&sort=created&direction=desc"
	}
	return path
}

func (a *GitHub) entry(e githubEntry, published *time.Time) FetchResult {
	meta := map[string]any{"repo": a.repo, "kind": a.kind}

	user := e.Author
	if user == nil {
		user = e.User
	}
	if user != nil && user.Login != "" {
		meta["author"] = user.Login
	}
	if e.Comments != nil {
		meta["comment_count"] = *e.Comments
	}
	if e.Number > 0 {
		meta["number"] = e.Number
	}

	title := e.Title
	if a.kind == githubReleases {
		title = cmp.Or(e.Name, e.TagName)
		meta["tag_name"] = e.TagName
		meta["prerelease"] = e.Prerelease
	}

	return a.result(e.HTMLURL, title, e.Body, published, meta)
}
