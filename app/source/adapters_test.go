package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewsAPIFetch(t *testing.T) {
	last := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/everything" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Errorf("Expected api key header, got: %q", r.Header.Get("X-Api-Key"))
		}
		if r.URL.Query().Get("q") != "ethereum" {
			t.Errorf("Expected query, got: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("from") != "2025-03-01T00:00:00Z" {
			t.Errorf("Expected from watermark, got: %s", r.URL.Query().Get("from"))
		}
		fmt.Fprint(w, `{"status": "ok", "articles": [
			{"source": {"name": "The Block"}, "author": "Jane", "title": "ETH ETF flows hit $1.2B",
			 "description": "Flows", "url": "https://theblock.co/eth", "publishedAt": "2025-03-02T10:00:00Z"},
			{"source": {"name": "Old"}, "title": "Stale", "url": "https://x/stale", "publishedAt": "2025-03-01T00:00:00Z"}
		]}`)
	}))
	defer server.Close()

	base := newTestBase(t, server.URL, &last, map[string]string{"query": "ethereum", "api_key": "key"})
	fetcher, err := NewNewsAPI(base, Options{})
	if err != nil {
		t.Fatalf("NewNewsAPI failed: %v", err)
	}

	results, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected boundary article to be excluded, got %d results", len(results))
	}
	if results[0].Metadata["source_name"] != "The Block" {
		t.Errorf("Expected source_name metadata, got: %v", results[0].Metadata)
	}
}

func TestNewsAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "error", "code": "apiKeyInvalid", "message": "bad key"}`)
	}))
	defer server.Close()

	fetcher, err := NewNewsAPI(newTestBase(t, server.URL, nil, map[string]string{"query": "eth"}), Options{NewsAPIKey: "k"})
	if err != nil {
		t.Fatalf("NewNewsAPI failed: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Error("Expected error status to fail the fetch")
	}
}

func TestNewNewsAPIRequiresKey(t *testing.T) {
	if _, err := NewNewsAPI(newTestBase(t, "https://newsapi.org", nil, map[string]string{"query": "eth"}), Options{}); err == nil {
		t.Error("Expected error without api key")
	}
}

func TestRedditFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/ethereum/new.json" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("Expected limit 50, got: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data": {"children": [
			{"data": {"title": "Daily thread", "permalink": "/r/ethereum/comments/0/daily/", "stickied": true, "created_utc": 1740823200}},
			{"data": {"title": "Blob fees explained", "selftext": "Long post", "permalink": "/r/ethereum/comments/1/blob/",
			          "url": "https://ultrasound.money", "author": "alice", "score": 321, "num_comments": 17, "created_utc": 1740823200}}
		]}}`)
	}))
	defer server.Close()

	fetcher, err := NewReddit(newTestBase(t, server.URL, nil, map[string]string{"subreddit": "r/ethereum"}), Options{})
	if err != nil {
		t.Fatalf("NewReddit failed: %v", err)
	}

	results, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected stickied post to be skipped, got %d results", len(results))
	}

	r := results[0]
	if r.URL != server.URL+"/r/ethereum/comments/1/blob/" {
		t.Errorf("Unexpected URL: %s", r.URL)
	}
	if r.Metadata["score"] != 321 || r.Metadata["comment_count"] != 17 {
		t.Errorf("Expected vote metadata, got: %v", r.Metadata)
	}
	if r.PublishedAt == nil || r.PublishedAt.Unix() != 1740823200 {
		t.Errorf("Expected created_utc as published time, got: %v", r.PublishedAt)
	}
}

func TestSnapshotFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got: %s", r.Method)
		}

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Variables["space"] != "ens.eth" {
			t.Errorf("Expected space variable, got: %v", req.Variables)
		}

		fmt.Fprint(w, `{"data": {"proposals": [
			{"id": "0xabc", "title": "EP 6.1", "body": "Fund the working group", "author": "0x123",
			 "created": 1740823200, "state": "active", "votes": 42, "scores_total": 1000.5}
		]}}`)
	}))
	defer server.Close()

	fetcher, err := NewSnapshot(newTestBase(t, server.URL+"/graphql", nil, map[string]string{"space": "ens.eth"}), Options{})
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	results, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 proposal, got: %d", len(results))
	}
	if results[0].URL != "https://snapshot.org/#/ens.eth/proposal/0xabc" {
		t.Errorf("Unexpected URL: %s", results[0].URL)
	}
	if results[0].Metadata["votes"] != 42 {
		t.Errorf("Expected votes metadata, got: %v", results[0].Metadata)
	}
}

func TestSnapshotGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors": [{"message": "space not found"}]}`)
	}))
	defer server.Close()

	fetcher, _ := NewSnapshot(newTestBase(t, server.URL, nil, map[string]string{"space": "x"}), Options{})
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Error("Expected GraphQL errors to fail the fetch")
	}
}
