package normalize

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/eth-comb/app/database"
)

// Item is a raw item reshaped for classification, summarization and dedup.
type Item struct {
	SourceID    string
	URL         string
	Title       string
	Author      *string
	PublishedAt time.Time
	FullText    string
	Engagement  *Engagement
	Metadata    map[string]any
}

type Engagement struct {
	Likes   *int
	Replies *int
	Views   *int
}

// AuthorRule extracts an author from source metadata. Extract reports false
// when the metadata does not have the rule's shape.
type AuthorRule struct {
	Name    string
	Extract func(meta map[string]any) (string, bool)
}

type EngagementRule struct {
	Name    string
	Extract func(meta map[string]any) (*Engagement, bool)
}

type Normalizer struct {
	AuthorRules     []AuthorRule
	EngagementRules []EngagementRule
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		AuthorRules:     DefaultAuthorRules,
		EngagementRules: DefaultEngagementRules,
	}
}

// Normalize returns false when the raw item has neither title nor text.
func (n *Normalizer) Normalize(raw database.RawItem) (Item, bool) {
	title := ""
	if raw.Title != nil {
		title = CleanTitle(*raw.Title)
	}
	text := ""
	if raw.Text != nil {
		text = strings.TrimSpace(*raw.Text)
	}

	if title == "" && text == "" {
		return Item{}, false
	}
	if text == "" {
		text = title
	}

	meta := raw.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	item := Item{
		SourceID:    raw.SourceID,
		URL:         raw.URL,
		Title:       title,
		PublishedAt: raw.FetchedAt,
		FullText:    text,
		Metadata:    meta,
	}

	for _, rule := range n.AuthorRules {
		if author, ok := rule.Extract(meta); ok {
			item.Author = &author
			break
		}
	}

	for _, rule := range n.EngagementRules {
		if engagement, ok := rule.Extract(meta); ok {
			item.Engagement = engagement
			break
		}
	}

	return item, true
}

// CleanTitle applies NFC, trims and collapses inner whitespace.
func CleanTitle(title string) string {
	return strings.Join(strings.Fields(norm.NFC.String(title)), " ")
}
