package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
)

func strPtr(s string) *string { return &s }

func TestNormalizeEmptyItem(t *testing.T) {
	n := NewNormalizer()

	tests := []database.RawItem{
		{URL: "https://e/1"},
		{URL: "https://e/2", Title: strPtr("  "), Text: strPtr("\n\t")},
		{URL: "https://e/3", Title: strPtr(""), Text: strPtr("")},
	}
	for _, raw := range tests {
		if _, ok := n.Normalize(raw); ok {
			t.Errorf("Expected no output for %s", raw.URL)
		}
	}
}

func TestNormalizeTitleFallback(t *testing.T) {
	fetched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := database.RawItem{
		SourceID:  "blog.ethereum.org",
		URL:       "https://blog.ethereum.org/pectra",
		Title:     strPtr("  Pectra   mainnet\nannouncement "),
		FetchedAt: fetched,
	}

	item, ok := NewNormalizer().Normalize(raw)
	if !ok {
		t.Fatal("Expected output for titled item")
	}
	if item.Title != "Pectra mainnet announcement" {
		t.Errorf("Expected cleaned title, got: %q", item.Title)
	}
	if item.FullText != item.Title {
		t.Errorf("Expected full text to fall back to title, got: %q", item.FullText)
	}
	if !item.PublishedAt.Equal(fetched) {
		t.Errorf("Expected published at fetch time %v, got: %v", fetched, item.PublishedAt)
	}
	if item.Author != nil {
		t.Errorf("Expected no author, got: %s", *item.Author)
	}
	if item.Engagement != nil {
		t.Errorf("Expected no engagement, got: %+v", item.Engagement)
	}
	if item.Metadata == nil {
		t.Error("Expected non-nil metadata")
	}
}

func TestNormalizeBodyWithoutTitle(t *testing.T) {
	item, ok := NewNormalizer().Normalize(database.RawItem{URL: "https://e", Text: strPtr("Body only")})
	if !ok {
		t.Fatal("Expected output for item with body")
	}
	if item.Title != "" {
		t.Errorf("Expected empty title, got: %q", item.Title)
	}
	if item.FullText != "Body only" {
		t.Errorf("Expected body text, got: %q", item.FullText)
	}
}

func TestCleanTitleNFC(t *testing.T) {
	// "e" + combining acute accent composes to U+00E9
	if got := CleanTitle("Cafe\u0301  news"); got != "Caf\u00e9 news" {
		t.Errorf("Expected composed form, got: %q", got)
	}
}

func TestNormalizeAuthor(t *testing.T) {
	tests := []struct {
		name     string
		meta     map[string]any
		expected string
	}{
		{"discourse name and username", map[string]any{"author_username": "vbuterin", "author_name": "Vitalik Buterin"}, "Vitalik Buterin (@vbuterin)"},
		{"discourse same name", map[string]any{"author_username": "dankrad", "author_name": "dankrad"}, "@dankrad"},
		{"discourse username only", map[string]any{"author_username": "potuz"}, "@potuz"},
		{"github login", map[string]any{"author": "lightclient"}, "@lightclient"},
		{"github login already prefixed", map[string]any{"author": "@lightclient"}, "@lightclient"},
		{"news source", map[string]any{"source_name": "The Block"}, "The Block"},
		{"byline", map[string]any{"byline": "Jane Doe"}, "Jane Doe"},
		{"discourse wins over github", map[string]any{"author_username": "a", "author": "b"}, "@a"},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := n.Normalize(database.RawItem{Title: strPtr("t"), Metadata: tt.meta})
			if !ok {
				t.Fatal("Expected output")
			}
			if item.Author == nil {
				t.Fatalf("Expected author %q, got nil", tt.expected)
			}
			if *item.Author != tt.expected {
				t.Errorf("Expected author %q, got: %q", tt.expected, *item.Author)
			}
		})
	}
}

func TestNormalizeAuthorIgnoresNonStrings(t *testing.T) {
	item, _ := NewNormalizer().Normalize(database.RawItem{
		Title:    strPtr("t"),
		Metadata: map[string]any{"author_username": 42, "author": ""},
	})
	if item.Author != nil {
		t.Errorf("Expected no author, got: %q", *item.Author)
	}
}

func TestNormalizeDiscourseEngagement(t *testing.T) {
	item, _ := NewNormalizer().Normalize(database.RawItem{
		Title: strPtr("t"),
		Metadata: map[string]any{
			"like_count":  float64(12),
			"reply_count": json.Number("4"),
			"views":       "1500",
			"score":       99,
		},
	})

	e := item.Engagement
	if e == nil {
		t.Fatal("Expected engagement")
	}
	if e.Likes == nil || *e.Likes != 12 {
		t.Errorf("Expected 12 likes, got: %v", e.Likes)
	}
	if e.Replies == nil || *e.Replies != 4 {
		t.Errorf("Expected 4 replies, got: %v", e.Replies)
	}
	if e.Views == nil || *e.Views != 1500 {
		t.Errorf("Expected 1500 views, got: %v", e.Views)
	}
}

func TestNormalizeVoteEngagement(t *testing.T) {
	item, _ := NewNormalizer().Normalize(database.RawItem{
		Title:    strPtr("t"),
		Metadata: map[string]any{"score": int64(321), "comment_count": 17},
	})

	e := item.Engagement
	if e == nil {
		t.Fatal("Expected engagement")
	}
	if e.Likes == nil || *e.Likes != 321 {
		t.Errorf("Expected 321 likes, got: %v", e.Likes)
	}
	if e.Replies == nil || *e.Replies != 17 {
		t.Errorf("Expected 17 replies, got: %v", e.Replies)
	}
	if e.Views != nil {
		t.Errorf("Expected nil views, got: %d", *e.Views)
	}

	item, _ = NewNormalizer().Normalize(database.RawItem{
		Title:    strPtr("t"),
		Metadata: map[string]any{"votes": 8},
	})
	if item.Engagement == nil || *item.Engagement.Likes != 8 || item.Engagement.Replies != nil {
		t.Errorf("Expected votes as likes without replies, got: %+v", item.Engagement)
	}
}

func TestNormalizeEngagementIgnoresGarbage(t *testing.T) {
	item, _ := NewNormalizer().Normalize(database.RawItem{
		Title:    strPtr("t"),
		Metadata: map[string]any{"like_count": "many", "comment_count": 3},
	})
	if item.Engagement != nil {
		t.Errorf("Expected no engagement, got: %+v", item.Engagement)
	}
}

func TestNormalizeCustomRules(t *testing.T) {
	n := &Normalizer{
		AuthorRules: []AuthorRule{{Name: "handle", Extract: verbatimAuthor("handle")}},
	}

	item, _ := n.Normalize(database.RawItem{
		Title:    strPtr("t"),
		Metadata: map[string]any{"handle": "eth_dev", "author": "ignored"},
	})
	if item.Author == nil || *item.Author != "eth_dev" {
		t.Errorf("Expected custom rule author, got: %v", item.Author)
	}
}
