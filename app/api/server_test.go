package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/feed"
	"github.com/lysyi3m/eth-comb/app/tasks"
)

const testAPIKey = "secret"

type fakeSources struct {
	sources []database.Source
}

func (f *fakeSources) GetSource(ctx context.Context, id string) (*database.Source, error) {
	for _, src := range f.sources {
		if src.ID == id {
			return &src, nil
		}
	}
	return nil, nil
}

func (f *fakeSources) ListSources(ctx context.Context) ([]database.Source, error) {
	return f.sources, nil
}

func (f *fakeSources) GetSourceCount(ctx context.Context) (int, error) {
	return len(f.sources), nil
}

type fakeCards struct {
	cards      []database.Card
	lastFilter database.CardFilter
	flags      []database.Flag
}

func (f *fakeCards) GetCard(ctx context.Context, id string) (*database.Card, error) {
	for _, card := range f.cards {
		if card.ID == id {
			return &card, nil
		}
	}
	return nil, nil
}

func (f *fakeCards) ListCards(ctx context.Context, filter database.CardFilter) ([]database.Card, error) {
	f.lastFilter = filter
	var out []database.Card
	for _, card := range f.cards {
		if filter.Category != "" && card.Category != filter.Category {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}

func (f *fakeCards) GetCardStats(ctx context.Context) (map[database.Category]int, error) {
	stats := map[database.Category]int{}
	for _, card := range f.cards {
		stats[card.Category]++
	}
	return stats, nil
}

func (f *fakeCards) FlagCard(ctx context.Context, cardID, reason string) (*database.Flag, error) {
	card, _ := f.GetCard(ctx, cardID)
	if card == nil {
		return nil, database.ErrCardNotFound
	}
	flag := database.Flag{ID: "flag-1", CardID: cardID, Reason: reason, CreatedAt: time.Now()}
	f.flags = append(f.flags, flag)
	return &flag, nil
}

type fakeRawStats struct{}

func (fakeRawStats) GetRawItemStats(ctx context.Context) (database.RawItemStats, error) {
	return database.RawItemStats{Total: 10, Unprocessed: 3}, nil
}

type fakeScheduler struct {
	polled []string
	err    error
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}
func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return f.err
}
func (f *fakeScheduler) EnqueuePoll(sourceID string) error {
	if f.err != nil {
		return f.err
	}
	f.polled = append(f.polled, sourceID)
	return nil
}

type testServer struct {
	cards     *fakeCards
	scheduler *fakeScheduler
	handler   http.Handler
}

func newTestServer(apiKey string) *testServer {
	sources := &fakeSources{sources: []database.Source{
		{ID: "eth-blog", Name: "Ethereum Blog", AdapterType: "rss", IsActive: true, PollInterval: 3600},
		{ID: "paused", Name: "Paused", AdapterType: "rss", IsActive: false},
	}}
	cards := &fakeCards{cards: []database.Card{
		{ID: "c1", Category: database.CategoryResearch, Headline: "Danksharding notes"},
		{ID: "c2", Category: database.CategoryUpgrade, Headline: "Geth v1.14"},
	}}
	scheduler := &fakeScheduler{}

	handler := NewHandler(nil, sources, cards, fakeRawStats{}, feed.NewGenerator("https://comb.example.org", "test"), scheduler)
	return &testServer{
		cards:     cards,
		scheduler: scheduler,
		handler:   NewServer(handler, apiKey),
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testAPIKey)

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(testAPIKey)
	w := s.do(http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status 'ok', got: %v", body["status"])
	}
	if body["sources"] != float64(2) {
		t.Errorf("Expected 2 sources, got: %v", body["sources"])
	}
}

func TestGetStats(t *testing.T) {
	s := newTestServer(testAPIKey)
	w := s.do(http.MethodGet, "/stats", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var body struct {
		Cards struct {
			Total      int            `json:"total"`
			ByCategory map[string]int `json:"by_category"`
		} `json:"cards"`
		RawItems struct {
			Unprocessed int `json:"unprocessed"`
		} `json:"raw_items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got: %v", err)
	}
	if body.Cards.Total != 2 {
		t.Errorf("Expected 2 cards, got: %d", body.Cards.Total)
	}
	if len(body.Cards.ByCategory) != len(database.Categories) {
		t.Errorf("Expected every category to be reported, got: %v", body.Cards.ByCategory)
	}
	if body.RawItems.Unprocessed != 3 {
		t.Errorf("Expected 3 unprocessed, got: %d", body.RawItems.Unprocessed)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(testAPIKey)

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header key", "X-API-Key", testAPIKey, http.StatusOK},
		{"bearer key", "Authorization", "Bearer " + testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			s.handler.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got: %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	s := newTestServer("")
	w := s.do(http.MethodGet, "/api/cards", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", w.Code)
	}
}

func TestAPIListCards(t *testing.T) {
	s := newTestServer(testAPIKey)

	w := s.do(http.MethodGet, "/api/cards?category=research&limit=1000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var body struct {
		Cards []CardResponse `json:"cards"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got: %v", err)
	}
	if body.Total != 1 || body.Cards[0].ID != "c1" {
		t.Errorf("Expected only card c1, got: %+v", body.Cards)
	}
	if s.cards.lastFilter.Limit != maxCardLimit {
		t.Errorf("Expected limit to be capped at %d, got: %d", maxCardLimit, s.cards.lastFilter.Limit)
	}
	if s.cards.lastFilter.IncludeSuspended {
		t.Error("Expected suspended cards to be excluded by default")
	}
}

func TestAPIListCards_BadParams(t *testing.T) {
	s := newTestServer(testAPIKey)

	for _, path := range []string{"/api/cards?category=memes", "/api/cards?limit=-1", "/api/cards?limit=abc"} {
		if w := s.do(http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got: %d", path, w.Code)
		}
	}
}

func TestAPIGetCard(t *testing.T) {
	s := newTestServer(testAPIKey)

	if w := s.do(http.MethodGet, "/api/cards/c2", ""); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/cards/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", w.Code)
	}
}

func TestAPIFlagCard(t *testing.T) {
	s := newTestServer(testAPIKey)

	w := s.do(http.MethodPost, "/api/cards/c1/flag", `{"reason":"misleading headline"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d (%s)", w.Code, w.Body.String())
	}
	if len(s.cards.flags) != 1 || s.cards.flags[0].Reason != "misleading headline" {
		t.Errorf("Expected one stored flag, got: %+v", s.cards.flags)
	}

	if w := s.do(http.MethodPost, "/api/cards/missing/flag", `{"reason":"spam"}`); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/cards/c1/flag", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", w.Code)
	}
}

func TestAPIListSources(t *testing.T) {
	s := newTestServer(testAPIKey)
	w := s.do(http.MethodGet, "/api/sources", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var body struct {
		Sources []SourceResponse `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got: %v", err)
	}
	if len(body.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got: %d", len(body.Sources))
	}
	if !body.Sources[0].IsDue {
		t.Error("Expected never-polled active source to be due")
	}
	if body.Sources[1].IsDue {
		t.Error("Expected inactive source not to be due")
	}
	if body.Sources[0].PollInterval != "1h0m0s" {
		t.Errorf("Expected poll interval '1h0m0s', got: %s", body.Sources[0].PollInterval)
	}
}

func TestAPIPollSource(t *testing.T) {
	s := newTestServer(testAPIKey)

	if w := s.do(http.MethodPost, "/api/sources/eth-blog/poll", ""); w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got: %d", w.Code)
	}
	if len(s.scheduler.polled) != 1 || s.scheduler.polled[0] != "eth-blog" {
		t.Errorf("Expected poll for 'eth-blog', got: %v", s.scheduler.polled)
	}

	if w := s.do(http.MethodPost, "/api/sources/missing/poll", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/sources/paused/poll", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got: %d", w.Code)
	}

	s.scheduler.err = errors.New("task queue is full")
	if w := s.do(http.MethodPost, "/api/sources/eth-blog/poll", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got: %d", w.Code)
	}
}

func TestGetFeed(t *testing.T) {
	s := newTestServer("")

	w := s.do(http.MethodGet, "/feeds/upgrade", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Expected XML content type, got: %s", ct)
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected 1 feed item, got: %s", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "Geth v1.14") {
		t.Error("Expected upgrade card in feed")
	}
	if strings.Contains(w.Body.String(), "Danksharding notes") {
		t.Error("Expected research card to be filtered out")
	}

	if w := s.do(http.MethodGet, "/feeds", ""); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for combined feed, got: %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/feeds/memes", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown category, got: %d", w.Code)
	}
}
