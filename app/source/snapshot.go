package source

import (
	"context"
	"fmt"
	"strings"
)

const snapshotProposalsQuery = `query Proposals($space: String!, $first: Int!) {
  proposals(first: $first, skip: 0, where: {space_in: [$space]}, orderBy: "created", orderDirection: desc) {
    id
    title
    body
    author
    created
    state
    votes
    scores_total
    link
  }
}`

// Snapshot queries governance proposals of one space from a Snapshot hub
// GraphQL endpoint. Options: space, first.
type Snapshot struct {
	Base
	space string
	first int
}

func NewSnapshot(base Base, _ Options) (Fetcher, error) {
	space := base.Option("space", "")
	if space == "" {
		return nil, fmt.Errorf("snapshot source %s needs a space option", base.Source.ID)
	}

	return &Snapshot{Base: base, space: space, first: base.IntOption("first", 20)}, nil
}

type snapshotResponse struct {
	Data struct {
		Proposals []struct {
			ID          string  `json:"id"`
			Title       string  `json:"title"`
			Body        string  `json:"body"`
			Author      string  `json:"author"`
			Created     float64 `json:"created"`
			State       string  `json:"state"`
			Votes       int     `json:"votes"`
			ScoresTotal float64 `json:"scores_total"`
			Link        string  `json:"link"`
		} `json:"proposals"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *Snapshot) Fetch(ctx context.Context) ([]FetchResult, error) {
	payload := map[string]any{
		"query": snapshotProposalsQuery,
		"variables": map[string]any{
			"space": a.space,
			"first": a.first,
		},
	}

	var resp snapshotResponse
	if err := a.Client.PostJSON(ctx, a.Source.BaseURL, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("snapshot query failed: %s", strings.Join(msgs, "; "))
	}

	results := make([]FetchResult, 0, len(resp.Data.Proposals))
	for _, p := range resp.Data.Proposals {
		published := timeFromUnix(p.Created)
		if !a.IsAfterLastPoll(published) {
			continue
		}

		link := p.Link
		if link == "" {
			link = fmt.Sprintf("https://snapshot.org/#/%s/proposal/%s", a.space, p.ID)
		}

		meta := map[string]any{
			"space":        a.space,
			"proposal_id":  p.ID,
			"state":        p.State,
			"votes":        p.Votes,
			"scores_total": p.ScoresTotal,
		}
		if p.Author != "" {
			meta["byline"] = p.Author
		}

		results = append(results, a.result(link, p.Title, p.Body, published, meta))
	}

	return results, nil
}
